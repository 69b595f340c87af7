package bot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"site89-bot/internal/audit"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type lockdownResult struct {
	updated int64
	missing int64
	failed  int64
}

// handleLockdown serves /lockdown and /unlockdown. Channels are processed
// independently; one failure does not stop the others.
func (b *Bot) handleLockdown(ctx context.Context, req *Request) (*Reply, error) {
	locked := req.Name == "lockdown"
	reason := req.Options.StringOr("reason", defaultReason)
	if len(b.cfg.Lockdown.ChannelIDs) == 0 {
		return textReply("❌ No lockdown channels are configured."), nil
	}

	result := b.setLockdown(ctx, req.GuildID, locked, reason)

	verb, event := "Unlocked", "unlockdown"
	if locked {
		verb, event = "Locked", "lockdown"
	}
	content := fmt.Sprintf("✅ %s **%d** channel(s).\nReason: %s", verb, result.updated, reason)
	if result.missing > 0 || result.failed > 0 {
		content += fmt.Sprintf("\nMissing: **%d**, failed: **%d**.", result.missing, result.failed)
	}
	b.record(ctx, req, audit.LevelCrit, event, "", fmt.Sprintf("%s (updated %d, missing %d, failed %d)", reason, result.updated, result.missing, result.failed))
	return &Reply{Content: content}, nil
}

// setLockdown denies (or clears) SendMessages for @everyone, whose role ID is
// the guild ID, on every configured channel.
func (b *Bot) setLockdown(ctx context.Context, guildID string, locked bool, reason string) lockdownResult {
	var updated, missing, failed atomic.Int64
	var group errgroup.Group
	if limit := b.cfg.Lockdown.Concurrency; limit > 0 {
		group.SetLimit(limit)
	}
	for _, channelID := range b.cfg.Lockdown.ChannelIDs {
		group.Go(func() error {
			err := b.client.SetSendLocked(ctx, channelID, guildID, locked, reason)
			switch {
			case err == nil:
				updated.Add(1)
			case errors.Is(err, ErrNotFound):
				missing.Add(1)
			default:
				failed.Add(1)
				b.logger.Warn("lockdown channel failed", zap.String("channel_id", channelID), zap.Bool("locked", locked), zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()
	return lockdownResult{updated: updated.Load(), missing: missing.Load(), failed: failed.Load()}
}
