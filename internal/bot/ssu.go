package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"site89-bot/internal/audit"
	"site89-bot/internal/poll"
	"site89-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) ssuDescription(hostID string) string {
	return fmt.Sprintf("A Server Start Up has been hosted by **%s**!\n"+
		"Please join to roleplay and have fun!\n\n"+
		"**How to join:**\n"+
		"> Join the SCP: Roleplay game\n"+
		"> Press \"Custom Servers\"\n"+
		"> Search, \"%s\" in the search bar\n"+
		"> Press Join!", mention(hostID), b.cfg.Notifications.GameServerName)
}

func (b *Bot) handleSSU(ctx context.Context, req *Request) (*Reply, error) {
	embed := b.commandEmbed("🚨 Server Start Up", b.ssuDescription(req.Invoker.ID), b.cfg.Notifications.EmbedColors.Action, nil)
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	if roleID := b.cfg.Roles.SSUPingRoleID; roleID != "" {
		msg.Content = roleMention(roleID)
		msg.AllowedMentions = &discordgo.MessageAllowedMentions{Roles: []string{roleID}}
	}

	sent, err := b.client.SendMessage(ctx, req.ChannelID, msg)
	if err != nil {
		return nil, fmt.Errorf("send ssu: %w", err)
	}
	b.record(ctx, req, audit.LevelInfo, "ssu", "", "server start up posted")

	pointer := storage.AnnouncementPointer{ChannelID: sent.ChannelID, MessageID: sent.ID, PostedBy: req.Invoker.ID}
	if pointer.ChannelID == "" {
		pointer.ChannelID = req.ChannelID
	}
	if err := b.store.SetAnnouncementPointer(ctx, req.GuildID, pointer); err != nil {
		b.logger.Error("save ssu pointer failed", zap.String("guild_id", req.GuildID), zap.Error(err))
		return textReply("⚠️ SSU posted, but it could not be saved for /ssutakeover."), nil
	}
	return textReply("✅ SSU posted."), nil
}

func (b *Bot) handleSSD(ctx context.Context, req *Request) (*Reply, error) {
	description := "Unfortunately, the Server Start-up has shut down.\n" +
		"Don't worry! There will always be another SSU soon!\n" +
		"Feel free to go the SSU beg channel to ask for an SSU!"
	embed := b.commandEmbed("🛑 Server Shutdown", description, b.cfg.Notifications.EmbedColors.Error, nil)
	if _, err := b.client.SendMessage(ctx, req.ChannelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		return nil, fmt.Errorf("send ssd: %w", err)
	}
	b.record(ctx, req, audit.LevelInfo, "ssd", "", "server shutdown posted")
	return textReply("✅ SSD posted."), nil
}

func (b *Bot) pollEmbed(snap poll.Snapshot) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "✅ Joining", Value: fmt.Sprintf("%d", snap.Join), Inline: true},
		{Name: "❓ Maybe", Value: fmt.Sprintf("%d", snap.Maybe), Inline: true},
		{Name: "❌ Can't", Value: fmt.Sprintf("%d", snap.Cant), Inline: true},
	}
	return b.commandEmbed("📊 SSU Poll", fmt.Sprintf("**%s**\n\nClick a button below to vote.", snap.Question), b.cfg.Notifications.EmbedColors.Action, fields)
}

func pollButtons(pollID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "✅ Joining", Style: discordgo.SuccessButton, CustomID: poll.CustomID(pollID, poll.Join)},
			discordgo.Button{Label: "❓ Maybe", Style: discordgo.SecondaryButton, CustomID: poll.CustomID(pollID, poll.Maybe)},
			discordgo.Button{Label: "❌ Can't", Style: discordgo.DangerButton, CustomID: poll.CustomID(pollID, poll.Cant)},
		}},
	}
}

// handleSSUPoll posts the poll first: its message ID becomes the poll ID, so
// the buttons are attached with a follow-up edit.
func (b *Bot) handleSSUPoll(ctx context.Context, req *Request) (*Reply, error) {
	question := req.Options.StringOr("question", b.cfg.Poll.DefaultQuestion)
	embed := b.pollEmbed(poll.Snapshot{Question: question})
	sent, err := b.client.SendMessage(ctx, req.ChannelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
	if err != nil {
		return nil, fmt.Errorf("send ssu poll: %w", err)
	}
	b.polls.Open(sent.ID, question)

	channelID := sent.ChannelID
	if channelID == "" {
		channelID = req.ChannelID
	}
	if err := b.client.AttachComponents(ctx, channelID, sent.ID, pollButtons(sent.ID)); err != nil {
		b.logger.Warn("attach poll buttons failed", zap.String("message_id", sent.ID), zap.Error(err))
		return textReply("⚠️ SSU poll posted, but the vote buttons could not be attached."), nil
	}
	return textReply("✅ SSU poll posted."), nil
}

// vote returns the refreshed poll embed, or nil and a notice for the voter.
func (b *Bot) vote(pollID, voterID string, choice poll.Choice) (*discordgo.MessageEmbed, string) {
	snap, err := b.polls.Vote(pollID, voterID, choice)
	switch {
	case errors.Is(err, poll.ErrExpired):
		return nil, "❌ This poll expired (bot restarted)."
	case errors.Is(err, poll.ErrUnknownChoice):
		return nil, "❌ Unknown poll option."
	case err != nil:
		b.logger.Error("poll vote failed", zap.String("poll_id", pollID), zap.Error(err))
		return nil, replyGenericFailure
	}
	return b.pollEmbed(snap), ""
}

// handleSSUPing serves /ssubeg and /ssurevive under a shared per-guild cooldown.
func (b *Bot) handleSSUPing(ctx context.Context, req *Request) (*Reply, error) {
	roleID, line, done := b.cfg.Roles.SSUBegRoleID, "is requesting an SSU!", "✅ SSU beg sent."
	if req.Name == "ssurevive" {
		roleID, line, done = b.cfg.Roles.SSUReviveRoleID, "is calling for an SSU revive!", "✅ SSU revive ping sent."
	}

	at := b.now()
	if ok, wait := b.pings.Allow(req.GuildID, at); !ok {
		return textReply("⏳ SSU pings are on cooldown. Try again in %s.", formatUptime(wait)), nil
	}

	msg := &discordgo.MessageSend{Content: fmt.Sprintf("%s %s", mention(req.Invoker.ID), line)}
	if roleID != "" {
		msg.Content = roleMention(roleID) + " " + msg.Content
		msg.AllowedMentions = &discordgo.MessageAllowedMentions{Roles: []string{roleID}}
	}
	if _, err := b.client.SendMessage(ctx, req.ChannelID, msg); err != nil {
		b.pings.Release(req.GuildID, at)
		return nil, fmt.Errorf("send %s: %w", req.Name, err)
	}
	return &Reply{Content: done}, nil
}

// handleSSUTakeover rewrites the last SSU announcement so it names the new host.
func (b *Bot) handleSSUTakeover(ctx context.Context, req *Request) (*Reply, error) {
	pointer, ok, err := b.store.AnnouncementPointer(ctx, req.GuildID)
	if err != nil {
		return nil, fmt.Errorf("load ssu pointer: %w", err)
	}
	if !ok {
		return textReply("❌ No SSU message saved yet. Use /ssu first."), nil
	}

	msg, err := b.client.Message(ctx, pointer.ChannelID, pointer.MessageID)
	if errors.Is(err, ErrNotFound) {
		return textReply("❌ Could not find the last SSU message."), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ssu message: %w", err)
	}
	if len(msg.Embeds) == 0 || msg.Embeds[0] == nil {
		return textReply("❌ Last SSU message has no embed."), nil
	}

	updated := *msg.Embeds[0]
	updated.Description = b.ssuDescription(req.Invoker.ID)
	updated.Timestamp = b.now().Format(time.RFC3339)
	if err := b.client.EditEmbeds(ctx, pointer.ChannelID, pointer.MessageID, []*discordgo.MessageEmbed{&updated}); err != nil {
		return nil, fmt.Errorf("edit ssu message: %w", err)
	}

	pointer.PostedBy = req.Invoker.ID
	pointer.PostedAt = b.now().UTC()
	if err := b.store.SetAnnouncementPointer(ctx, req.GuildID, pointer); err != nil {
		b.logger.Warn("update ssu pointer failed", zap.String("guild_id", req.GuildID), zap.Error(err))
	}
	b.record(ctx, req, audit.LevelInfo, "ssutakeover", pointer.PostedBy, "ssu host changed")
	return textReply("✅ SSU takeover complete. Embed updated."), nil
}
