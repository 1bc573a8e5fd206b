package domain

type NotificationKind string

const (
	MemberAssigned NotificationKind = "assigned"
	MemberMoved    NotificationKind = "moved"
	MemberReserved NotificationKind = "reserved"
	MemberPromoted NotificationKind = "promoted"
)

// Notification es el payload saliente hacia DMs / paneles.
// FromParty y ToParty solo aplican a MemberMoved.
type Notification struct {
	Kind        NotificationKind
	GuildID     string
	UserID      string
	PartyNumber int
	FromParty   int
	ToParty     int
	Role        Role
	Reason      string
}
