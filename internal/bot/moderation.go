package bot

import (
	"context"
	"fmt"
	"time"

	"site89-bot/internal/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const maxTimeoutMinutes = 40320

// moderation is what every member action needs before it touches Discord.
type moderation struct {
	hierarchy *hierarchy
	self      *discordgo.Member
	target    *discordgo.Member
}

func (b *Bot) prepareModeration(ctx context.Context, req *Request, userID string) (*moderation, error) {
	h, err := b.loadHierarchy(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	self, err := b.botMember(ctx, req.GuildID)
	if err != nil {
		return nil, fmt.Errorf("fetch bot member: %w", err)
	}
	target, err := b.optionalMember(ctx, req.GuildID, userID)
	if err != nil {
		return nil, err
	}
	return &moderation{hierarchy: h, self: self, target: target}, nil
}

// safety returns a refusal when the target is absent, owns the guild, or sits
// at or above the bot or the moderator in the role hierarchy. The guild owner
// may moderate anyone the bot can.
func (m *moderation) safety(req *Request) string {
	if m.target == nil {
		return "❌ That user is not in this server."
	}
	h := m.hierarchy
	if memberID(m.target) == h.guild.OwnerID {
		return "❌ You can't moderate the server owner."
	}
	targetTop := h.topPosition(m.target.Roles)
	if h.topPosition(m.self.Roles) <= targetTop {
		return "❌ My bot role must be above the target's top role."
	}
	if req.Invoker.ID != h.guild.OwnerID {
		actorRoles := make([]string, 0, len(req.Invoker.Roles))
		for _, role := range req.Invoker.Roles {
			actorRoles = append(actorRoles, role.ID)
		}
		if h.topPosition(actorRoles) <= targetTop {
			return "❌ You can't moderate someone with an equal/higher top role than you."
		}
	}
	return ""
}

func (m *moderation) botMissing(bit int64, label string) string {
	if m.hierarchy.allows(m.self, bit) {
		return ""
	}
	return fmt.Sprintf("❌ I need **%s** permission.", label)
}

// notice DMs the moderated user. Failures are expected (closed DMs) and only logged.
func (b *Bot) notice(ctx context.Context, userID, content string) {
	if !b.cfg.Notifications.DMNoticeEnabled {
		return
	}
	if err := b.client.DirectMessage(ctx, userID, content); err != nil {
		b.logger.Info("dm notice not delivered", zap.String("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) handleKick(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	reason := req.Options.StringOr("reason", defaultReason)

	mod, err := b.prepareModeration(ctx, req, user.ID)
	if err != nil {
		return nil, err
	}
	if msg := mod.safety(req); msg != "" {
		return &Reply{Content: msg}, nil
	}
	if msg := mod.botMissing(discordgo.PermissionKickMembers, "Kick Members"); msg != "" {
		return &Reply{Content: msg}, nil
	}

	b.notice(ctx, user.ID, fmt.Sprintf("You were kicked from **%s**.\nReason: %s", mod.hierarchy.guild.Name, reason))
	if err := b.client.Kick(ctx, req.GuildID, user.ID, reason); err != nil {
		return nil, fmt.Errorf("kick %s: %w", user.ID, err)
	}
	b.record(ctx, req, audit.LevelWarn, "kick", user.ID, reason)
	return textReply("✅ Kicked %s. Reason: %s", displayUser(user), reason), nil
}

func (b *Bot) handleBan(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	reason := req.Options.StringOr("reason", defaultReason)
	deleteDays, _ := req.Options.Int("delete_days")
	if deleteDays < 0 || deleteDays > 7 {
		return textReply("❌ delete_days must be between 0 and 7."), nil
	}

	mod, err := b.prepareModeration(ctx, req, user.ID)
	if err != nil {
		return nil, err
	}
	if msg := mod.botMissing(discordgo.PermissionBanMembers, "Ban Members"); msg != "" {
		return &Reply{Content: msg}, nil
	}
	// Users who already left can still be banned; hierarchy only applies to members.
	if mod.target != nil {
		if msg := mod.safety(req); msg != "" {
			return &Reply{Content: msg}, nil
		}
	}

	b.notice(ctx, user.ID, fmt.Sprintf("You were banned from **%s**.\nReason: %s", mod.hierarchy.guild.Name, reason))
	if err := b.client.Ban(ctx, req.GuildID, user.ID, reason, int(deleteDays)); err != nil {
		return nil, fmt.Errorf("ban %s: %w", user.ID, err)
	}
	b.record(ctx, req, audit.LevelCrit, "ban", user.ID, fmt.Sprintf("%s (deleted %d day(s) of messages)", reason, deleteDays))
	return textReply("✅ Banned %s. Deleted %d day(s) of messages. Reason: %s", displayUser(user), deleteDays, reason), nil
}

func (b *Bot) handleTimeout(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	minutes, ok := req.Options.Int("minutes")
	if !ok || minutes < 1 || minutes > maxTimeoutMinutes {
		return textReply("❌ minutes must be between 1 and %d.", maxTimeoutMinutes), nil
	}
	reason := req.Options.StringOr("reason", defaultReason)

	mod, err := b.prepareModeration(ctx, req, user.ID)
	if err != nil {
		return nil, err
	}
	if msg := mod.safety(req); msg != "" {
		return &Reply{Content: msg}, nil
	}
	if msg := mod.botMissing(discordgo.PermissionModerateMembers, "Timeout Members"); msg != "" {
		return &Reply{Content: msg}, nil
	}

	until := b.now().Add(time.Duration(minutes) * time.Minute)
	b.notice(ctx, user.ID, fmt.Sprintf("You were timed out in **%s** for **%d minutes**.\nReason: %s", mod.hierarchy.guild.Name, minutes, reason))
	if err := b.client.Timeout(ctx, req.GuildID, user.ID, &until, reason); err != nil {
		return nil, fmt.Errorf("timeout %s: %w", user.ID, err)
	}
	b.record(ctx, req, audit.LevelWarn, "timeout", user.ID, fmt.Sprintf("%d minute(s): %s", minutes, reason))
	return textReply("✅ Timed out %s for **%d minute(s)**. Reason: %s", displayUser(user), minutes, reason), nil
}

func (b *Bot) handleUntimeout(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	reason := req.Options.StringOr("reason", defaultReason)

	target, err := b.optionalMember(ctx, req.GuildID, user.ID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return textReply("❌ That user is not in this server."), nil
	}
	if err := b.client.Timeout(ctx, req.GuildID, user.ID, nil, reason); err != nil {
		return nil, fmt.Errorf("untimeout %s: %w", user.ID, err)
	}
	b.record(ctx, req, audit.LevelInfo, "untimeout", user.ID, reason)
	return textReply("✅ Removed timeout from %s. Reason: %s", displayUser(user), reason), nil
}
