package domain

import (
	"sort"
	"time"
)

// ReserveLess es el unico orden de la reserva: rol (tank, healer, dps),
// CP desc, y despues el que lleva mas tiempo en reserva. userID desempata.
// Lo usan el drain y cualquier listado, no hay que duplicarlo.
func ReserveLess(a, b Player) bool {
	if a.Role.Priority() != b.Role.Priority() {
		return a.Role.Priority() < b.Role.Priority()
	}
	if a.CP != b.CP {
		return a.CP > b.CP
	}
	ta, tb := reservedAt(a), reservedAt(b)
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	return a.UserID < b.UserID
}

func SortReserve(ps []Player) {
	sort.SliceStable(ps, func(i, j int) bool { return ReserveLess(ps[i], ps[j]) })
}

func reservedAt(p Player) time.Time {
	if p.ReservedAt == nil {
		return time.Time{}
	}
	return *p.ReservedAt
}
