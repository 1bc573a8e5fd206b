package allocation

import (
	"errors"

	"github.com/jose-valero/squad-allocator-bot/internal/app/partystore"
)

var (
	ErrNotFound           = partystore.ErrNotFound
	ErrIncompleteProfile  = errors.New("profile incomplete: both weapons are required")
	ErrAutoAssignDisabled = errors.New("auto assignment is disabled for this guild")
	ErrAlreadyPlaced      = errors.New("player is already placed")
	ErrNotInReserve       = errors.New("player is not in reserve")
	ErrInvalidMaxParties  = errors.New("max parties out of range")
	ErrInvalidMaxHealers  = errors.New("max healers out of range")
	ErrInvalidCP          = errors.New("cp must be a non-negative integer")
	ErrDebounced          = errors.New("rebalance ran too recently")
)
