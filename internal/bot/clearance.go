package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"site89-bot/internal/audit"
	"site89-bot/internal/clearance"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const clearanceListLimit = 25

func (b *Bot) handleClearance(ctx context.Context, req *Request) (*Reply, error) {
	switch req.Subcommand {
	case "set":
		return b.handleClearanceSet(ctx, req)
	case "get":
		return b.handleClearanceGet(ctx, req)
	case "list":
		return b.handleClearanceList(ctx, req)
	default:
		return textReply("❌ Unknown subcommand /clearance %s.", req.Subcommand), nil
	}
}

func (b *Bot) handleClearanceSet(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	value, _ := req.Options.String("level")
	level, err := b.store.SetClearance(ctx, req.GuildID, user.ID, clearance.Level(value))
	if errors.Is(err, clearance.ErrInvalidLevel) {
		return textReply("❌ Invalid clearance level **%s**. Use L1-L5 or SITE_DIRECTOR.", value), nil
	}
	if err != nil {
		return nil, fmt.Errorf("set clearance: %w", err)
	}
	b.record(ctx, req, audit.LevelInfo, "clearance", user.ID, string(level))

	content := fmt.Sprintf("✅ Set %s to **%s**.", displayUser(user), level.DisplayName())
	if problem := b.syncClearanceRole(ctx, req.GuildID, user.ID, level); problem != "" {
		content += "\n⚠️ Role not synced: " + problem
	}
	return &Reply{Content: content}, nil
}

func (b *Bot) handleClearanceGet(ctx context.Context, req *Request) (*Reply, error) {
	user, ok := req.Options.User("user")
	if !ok || user.ID == "" {
		user = UserOption{ID: req.Invoker.ID, Username: req.Invoker.Username}
	}
	level, err := b.store.Clearance(ctx, req.GuildID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get clearance: %w", err)
	}
	return textReply("🪪 %s has clearance **%s**.", displayUser(user), level.DisplayName()), nil
}

func (b *Bot) handleClearanceList(ctx context.Context, req *Request) (*Reply, error) {
	entries, err := b.store.ClearanceList(ctx, req.GuildID)
	if err != nil {
		return nil, fmt.Errorf("list clearance: %w", err)
	}
	if len(entries) == 0 {
		return textReply("✅ No clearance records yet."), nil
	}
	lines := make([]string, 0, clearanceListLimit)
	for i, entry := range entries {
		if i == clearanceListLimit {
			lines = append(lines, fmt.Sprintf("…and %d more", len(entries)-clearanceListLimit))
			break
		}
		lines = append(lines, fmt.Sprintf("**%s** %s", entry.Level.DisplayName(), mention(entry.UserID)))
	}
	embed := b.commandEmbed("🪪 Clearance Records", strings.Join(lines, "\n"), b.cfg.Notifications.EmbedColors.Action, nil)
	return &Reply{Embed: embed}, nil
}

// syncClearanceRole swaps the member's clearance roles for the one mapped to
// level. It returns a short problem description, or "" when synced or when no
// role is configured for the level.
func (b *Bot) syncClearanceRole(ctx context.Context, guildID, userID string, level clearance.Level) string {
	targetID := b.cfg.Clearance.RoleIDs[string(level)]
	if targetID == "" {
		return ""
	}
	managed := make(map[string]struct{})
	for _, id := range b.cfg.Clearance.RoleIDs {
		if id != "" {
			managed[id] = struct{}{}
		}
	}

	h, err := b.loadHierarchy(ctx, guildID)
	if err != nil {
		return "could not load server roles."
	}
	self, err := b.botMember(ctx, guildID)
	if err != nil {
		return "could not load my member record."
	}
	if !h.allows(self, discordgo.PermissionManageRoles) {
		return "I need Manage Roles to sync clearance roles."
	}
	target := h.roles[targetID]
	if target == nil {
		return "target clearance role not found."
	}
	if h.topPosition(self.Roles) <= target.Position {
		return "move my bot role above the clearance roles."
	}
	member, err := b.optionalMember(ctx, guildID, userID)
	if err != nil || member == nil {
		return "that user is not in this server."
	}

	reason := "clearance set to " + string(level)
	for _, id := range member.Roles {
		if _, ok := managed[id]; ok && id != targetID {
			if err := b.client.RemoveRole(ctx, guildID, userID, id, reason); err != nil {
				b.logger.Warn("remove old clearance role failed",
					zap.String("guild_id", guildID),
					zap.String("user_id", userID),
					zap.String("role_id", id),
					zap.Error(err))
			}
		}
	}
	if err := b.client.AddRole(ctx, guildID, userID, targetID, reason); err != nil {
		return "could not add the clearance role."
	}
	return ""
}
