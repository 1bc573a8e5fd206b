package discord

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// por encima de esto el paso sale en Warn
const slowStep = 2 * time.Second

// span mide un paso del router: un slash, un click o un edit del panel.
type span struct {
	log   *zap.Logger
	label string
	guild string
	start time.Time
	now   func() time.Time
}

func (r *Router) span(label, guildID string) *span {
	return newSpan(r.log, label, guildID, time.Now)
}

func newSpan(log *zap.Logger, label, guildID string, now func() time.Time) *span {
	return &span{log: log, label: label, guild: guildID, start: now(), now: now}
}

func (sp *span) end() {
	took := sp.now().Sub(sp.start)
	lvl := zapcore.DebugLevel
	if took >= slowStep {
		lvl = zapcore.WarnLevel
	}
	sp.log.Log(lvl, "step done",
		zap.String("step", sp.label),
		zap.String("guild", sp.guild),
		zap.Duration("took", took),
		zap.Int64("took_ms", took.Milliseconds()))
}
