package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"site89-bot/internal/audit"
	"site89-bot/internal/storage"
)

const warningsShown = 5

// handleWarn records the warning before the DM notice so a failed DM never
// loses the record.
func (b *Bot) handleWarn(ctx context.Context, req *Request) (*Reply, error) {
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

	warning, total, err := b.store.AddWarning(ctx, req.GuildID, user.ID, req.Invoker.ID, reason)
	if err != nil {
		return nil, fmt.Errorf("add warning: %w", err)
	}
	b.record(ctx, req, audit.LevelWarn, "warn", user.ID, fmt.Sprintf("#%d %s", warning.ID, reason))
	b.notice(ctx, user.ID, fmt.Sprintf("You were warned in **%s**.\nReason: %s\nWarn ID: %d\nTotal warnings: %d",
		mod.hierarchy.guild.Name, reason, warning.ID, total))

	return textReply("✅ Warned %s.\n**Warn ID:** %d\n**Total warnings:** %d\n**Reason:** %s", displayUser(user), warning.ID, total, reason), nil
}

func (b *Bot) handleWarnings(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	list, err := b.store.Warnings(ctx, req.GuildID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load warnings: %w", err)
	}
	if len(list) == 0 {
		return textReply("✅ %s has **0** warnings.", displayUser(user)), nil
	}

	var blocks []string
	for i := len(list) - 1; i >= 0 && len(blocks) < warningsShown; i-- {
		blocks = append(blocks, formatWarning(list[i]))
	}
	description := fmt.Sprintf("Total warnings: **%d**\n\n%s", len(list), strings.Join(blocks, "\n\n"))
	if len(list) > warningsShown {
		description += fmt.Sprintf("\n\n…showing latest **%d**. Use IDs with /unwarn.", warningsShown)
	}
	name := user.Username
	if name == "" {
		name = user.ID
	}
	embed := b.commandEmbed("📄 Warnings for "+name, description, b.cfg.Notifications.EmbedColors.Warning, nil)
	return &Reply{Embed: embed}, nil
}

func formatWarning(w storage.Warning) string {
	return fmt.Sprintf("• **ID:** `%d`\n  **By:** %s\n  **When:** <t:%d:R>\n  **Reason:** %s",
		w.ID, mention(w.ModeratorID), w.CreatedAt.Unix(), w.Reason)
}

func (b *Bot) handleUnwarn(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	id, ok := req.Options.Int("warn_id")
	if !ok {
		return textReply("❌ Missing option **warn_id**."), nil
	}
	removed, err := b.store.RemoveWarning(ctx, req.GuildID, user.ID, id)
	if errors.Is(err, storage.ErrWarningNotFound) {
		return textReply("❌ No warning found with ID **%d** for %s.", id, displayUser(user)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("remove warning: %w", err)
	}
	b.record(ctx, req, audit.LevelInfo, "unwarn", user.ID, fmt.Sprintf("#%d %s", removed.ID, removed.Reason))
	return textReply("✅ Removed warning **#%d** from %s.\nReason was: **%s**", id, displayUser(user), removed.Reason), nil
}

func (b *Bot) handleEditWarn(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	id, ok := req.Options.Int("warn_id")
	if !ok {
		return textReply("❌ Missing option **warn_id**."), nil
	}
	reason, ok := req.Options.String("reason")
	if !ok || reason == "" {
		return textReply("❌ Missing option **reason**."), nil
	}
	if _, err := b.store.EditWarning(ctx, req.GuildID, user.ID, id, reason); err != nil {
		if errors.Is(err, storage.ErrWarningNotFound) {
			return textReply("❌ No warning found with ID **%d** for %s.", id, displayUser(user)), nil
		}
		return nil, fmt.Errorf("edit warning: %w", err)
	}
	b.record(ctx, req, audit.LevelInfo, "editwarn", user.ID, fmt.Sprintf("#%d %s", id, reason))
	return textReply("✅ Edited warning **#%d** for %s.\nNew reason: %s", id, displayUser(user), reason), nil
}

func (b *Bot) handleClearWarns(ctx context.Context, req *Request) (*Reply, error) {
	user, reply := requireUser(req, "user")
	if reply != nil {
		return reply, nil
	}
	cleared, err := b.store.ClearWarnings(ctx, req.GuildID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("clear warnings: %w", err)
	}
	b.record(ctx, req, audit.LevelInfo, "clearwarns", user.ID, fmt.Sprintf("%d cleared", cleared))
	return textReply("✅ Cleared **%d** warning(s) for %s.", cleared, displayUser(user)), nil
}
