package bot

import (
	"context"
	"fmt"

	"site89-bot/internal/audit"

	"github.com/bwmarrin/discordgo"
)

// handleBroadcast serves /announce and /intercom, which differ only in title.
func (b *Bot) handleBroadcast(ctx context.Context, req *Request) (*Reply, error) {
	message, ok := req.Options.String("message")
	if !ok || message == "" {
		return textReply("❌ Missing option **message**."), nil
	}
	title := "📣 Announcement"
	if req.Name == "intercom" {
		title = "📢 Intercom Broadcast"
	}
	embed := b.commandEmbed(title, message, b.cfg.Notifications.EmbedColors.Action, nil)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Posted by " + req.Invoker.Username}

	if _, err := b.client.SendMessage(ctx, req.ChannelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Name, err)
	}
	b.record(ctx, req, audit.LevelInfo, req.Name, "", message)
	return textReply("✅ %s sent.", req.Name), nil
}
