package bot

import (
	"context"
	"errors"
	"fmt"

	"site89-bot/internal/audit"

	"github.com/bwmarrin/discordgo"
)

// hierarchy is the guild's role table plus its owner, enough to compare
// members by top role and compute base permissions.
type hierarchy struct {
	guild *discordgo.Guild
	roles map[string]*discordgo.Role
}

func (b *Bot) loadHierarchy(ctx context.Context, guildID string) (*hierarchy, error) {
	guild, err := b.client.Guild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild: %w", err)
	}
	roles, err := b.client.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch roles: %w", err)
	}
	h := &hierarchy{guild: guild, roles: make(map[string]*discordgo.Role, len(roles))}
	for _, role := range roles {
		h.roles[role.ID] = role
	}
	return h, nil
}

func (h *hierarchy) topPosition(roleIDs []string) int {
	top := 0
	for _, id := range roleIDs {
		if role := h.roles[id]; role != nil && role.Position > top {
			top = role.Position
		}
	}
	return top
}

// allPermissions sets every bit, including ones newer than discordgo.PermissionAll.
const allPermissions = ^int64(0)

// permissions is the guild-level permission set granted by @everyone and roleIDs.
func (h *hierarchy) permissions(userID string, roleIDs []string) int64 {
	if userID == h.guild.OwnerID {
		return allPermissions
	}
	var perms int64
	if everyone := h.roles[h.guild.ID]; everyone != nil {
		perms = everyone.Permissions
	}
	for _, id := range roleIDs {
		if role := h.roles[id]; role != nil {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return allPermissions
	}
	return perms
}

func (h *hierarchy) allows(member *discordgo.Member, bit int64) bool {
	return h.permissions(memberID(member), member.Roles)&bit == bit
}

func memberID(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return ""
	}
	return member.User.ID
}

func (b *Bot) botMember(ctx context.Context, guildID string) (*discordgo.Member, error) {
	id := b.client.BotUserID()
	if id == "" {
		return nil, errors.New("bot user not ready")
	}
	return b.client.Member(ctx, guildID, id)
}

// optionalMember returns nil without error when the user is not in the guild.
func (b *Bot) optionalMember(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	member, err := b.client.Member(ctx, guildID, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return member, nil
}

// handleRoleChange serves /addrole and /removerole.
func (b *Bot) handleRoleChange(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	role, ok := req.Options.Role("role")
	if !ok || role.ID == "" {
		return textReply("❌ Missing option **role**."), nil
	}

	h, err := b.loadHierarchy(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	self, err := b.botMember(ctx, req.GuildID)
	if err != nil {
		return nil, fmt.Errorf("fetch bot member: %w", err)
	}
	if !h.allows(self, discordgo.PermissionManageRoles) {
		return textReply("❌ I need **Manage Roles** permission."), nil
	}
	position := role.Position
	if known := h.roles[role.ID]; known != nil {
		position = known.Position
	}
	if position >= h.topPosition(self.Roles) {
		return textReply("❌ I can't manage that role (it's higher than or equal to my top role)."), nil
	}
	target, err := b.optionalMember(ctx, req.GuildID, user.ID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return textReply("❌ That user is not in this server."), nil
	}

	reason := fmt.Sprintf("/%s by %s", req.Name, req.Invoker.Username)
	if req.Name == "addrole" {
		if err := b.client.AddRole(ctx, req.GuildID, user.ID, role.ID, reason); err != nil {
			return nil, fmt.Errorf("add role: %w", err)
		}
		b.record(ctx, req, audit.LevelInfo, "addrole", user.ID, roleMention(role.ID))
		return textReply("✅ Added %s to %s.", roleMention(role.ID), mention(user.ID)), nil
	}
	if err := b.client.RemoveRole(ctx, req.GuildID, user.ID, role.ID, reason); err != nil {
		return nil, fmt.Errorf("remove role: %w", err)
	}
	b.record(ctx, req, audit.LevelInfo, "removerole", user.ID, roleMention(role.ID))
	return textReply("✅ Removed %s from %s.", roleMention(role.ID), mention(user.ID)), nil
}
