package domain

import "strings"

type Role string

const (
	RoleTank   Role = "tank"
	RoleHealer Role = "healer"
	RoleDPS    Role = "dps"
)

// armas canonicas; los alias se resuelven en NormalizeWeapon
const (
	WeaponSwordShield = "sword_shield"
	WeaponGreatsword  = "greatsword"
	WeaponDaggers     = "daggers"
	WeaponCrossbow    = "crossbow"
	WeaponLongbow     = "longbow"
	WeaponStaff       = "staff"
	WeaponWand        = "wand"
	WeaponSpear       = "spear"
	WeaponOrb         = "orb"
)

var weaponAliases = map[string]string{
	"sns":              WeaponSwordShield,
	"sword":            WeaponSwordShield,
	"sword_shield":     WeaponSwordShield,
	"sword and shield": WeaponSwordShield,
	"sword & shield":   WeaponSwordShield,
	"sword/shield":     WeaponSwordShield,
	"gs":               WeaponGreatsword,
	"greatsword":       WeaponGreatsword,
	"dagger":           WeaponDaggers,
	"daggers":          WeaponDaggers,
	"xbow":             WeaponCrossbow,
	"crossbow":         WeaponCrossbow,
	"bow":              WeaponLongbow,
	"longbow":          WeaponLongbow,
	"staff":            WeaponStaff,
	"wand":             WeaponWand,
	"wand and tome":    WeaponWand,
	"spear":            WeaponSpear,
	"orb":              WeaponOrb,
}

// Weapons devuelve la lista canonica (para choices de slash commands).
func Weapons() []string {
	return []string{
		WeaponSwordShield, WeaponGreatsword, WeaponDaggers, WeaponCrossbow, WeaponLongbow,
		WeaponStaff, WeaponWand, WeaponSpear, WeaponOrb,
	}
}

// NormalizeWeapon: minusculas, sin espacios extra, alias resueltos.
// Un arma desconocida se devuelve normalizada pero sin resolver.
func NormalizeWeapon(w string) string {
	w = strings.Join(strings.Fields(strings.ToLower(w)), " ")
	if c, ok := weaponAliases[w]; ok {
		return c
	}
	return w
}

// pares de soporte: cualquiera de los dos ordenes
var healerPairs = [][2]string{
	{WeaponWand, WeaponLongbow},
	{WeaponWand, WeaponStaff},
}

// ClassifyRole deriva el rol a partir de las dos armas equipadas.
// Escudo en cualquiera de las manos => tank; un par de soporte => healer; resto dps.
// Si falta alguna arma el rol es dps.
func ClassifyRole(weapon1, weapon2 string) Role {
	w1, w2 := NormalizeWeapon(weapon1), NormalizeWeapon(weapon2)
	if w1 == "" || w2 == "" {
		return RoleDPS
	}
	if w1 == WeaponSwordShield || w2 == WeaponSwordShield {
		return RoleTank
	}
	for _, p := range healerPairs {
		if (w1 == p[0] && w2 == p[1]) || (w1 == p[1] && w2 == p[0]) {
			return RoleHealer
		}
	}
	return RoleDPS
}

// Priority: tank < healer < dps (menor = antes).
func (r Role) Priority() int {
	switch r {
	case RoleTank:
		return 0
	case RoleHealer:
		return 1
	default:
		return 2
	}
}

func (r Role) Valid() bool {
	return r == RoleTank || r == RoleHealer || r == RoleDPS
}
