package discord

import "github.com/bwmarrin/discordgo"

func (r *Router) requireAdminOrRoles(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	owner := ""
	if g, _ := s.State.Guild(ic.GuildID); g != nil {
		owner = g.OwnerID
	}
	var roles []*discordgo.Role
	if ic.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		// las interacciones traen los permisos calculados; sólo si faltan vamos a la API
		roles, _ = s.GuildRoles(ic.GuildID)
	}
	if isAdmin(ic.Member, owner, roles, r.adminRoleIDs) {
		return true
	}
	ReplyEphemeral(s, ic, "🔒 No tienes permisos para esta acción.")
	return false
}

// isAdmin: owner del guild, bit Administrator (calculado o por roles) o uno
// de los roles configurados en ADMIN_ROLE_IDS.
func isAdmin(m *discordgo.Member, ownerID string, guildRoles []*discordgo.Role, adminRoleIDs []string) bool {
	if m == nil || m.User == nil {
		return false
	}
	if ownerID != "" && m.User.ID == ownerID {
		return true
	}
	if m.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}

	has := make(map[string]struct{}, len(m.Roles))
	for _, rid := range m.Roles {
		has[rid] = struct{}{}
	}
	for _, ro := range guildRoles {
		if _, ok := has[ro.ID]; ok && ro.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	for _, want := range adminRoleIDs {
		if _, ok := has[want]; ok {
			return true
		}
	}
	return false
}
