package bot

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound is returned when Discord reports the guild, member, channel or
// message as missing.
var ErrNotFound = errors.New("discord: not found")

// Client is the subset of Discord operations the command handlers perform.
// Calls are not retried here; discordgo already handles rate limits.
type Client interface {
	BotUserID() string
	Latency() time.Duration
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	GuildRoles(ctx context.Context, guildID string) ([]*discordgo.Role, error)
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
	EditEmbeds(ctx context.Context, channelID, messageID string, embeds []*discordgo.MessageEmbed) error
	AttachComponents(ctx context.Context, channelID, messageID string, components []discordgo.MessageComponent) error
	DirectMessage(ctx context.Context, userID, content string) error
	AddRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error
	SetSendLocked(ctx context.Context, channelID, roleID string, locked bool, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error
}

type sessionClient struct {
	session *discordgo.Session
}

func newSessionClient(session *discordgo.Session) *sessionClient {
	return &sessionClient{session: session}
}

func requestOptions(ctx context.Context, reason string) []discordgo.RequestOption {
	options := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		options = append(options, discordgo.WithAuditLogReason(reason))
	}
	return options
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return ErrNotFound
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func (c *sessionClient) BotUserID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

func (c *sessionClient) Latency() time.Duration {
	return c.session.HeartbeatLatency()
}

func (c *sessionClient) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if guild, err := c.session.State.Guild(guildID); err == nil && guild.MemberCount > 0 {
		return guild, nil
	}
	guild, err := c.session.GuildWithCounts(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	if guild.MemberCount == 0 {
		guild.MemberCount = guild.ApproximateMemberCount
	}
	return guild, nil
}

func (c *sessionClient) GuildRoles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	if guild, err := c.session.State.Guild(guildID); err == nil && len(guild.Roles) > 0 {
		return guild.Roles, nil
	}
	roles, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	return roles, mapError(err)
}

func (c *sessionClient) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if member, err := c.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	member, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	return member, mapError(err)
}

func (c *sessionClient) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if channel, err := c.session.State.Channel(channelID); err == nil {
		return channel, nil
	}
	channel, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	return channel, mapError(err)
}

func (c *sessionClient) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	sent, err := c.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return sent, mapError(err)
}

func (c *sessionClient) Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	msg, err := c.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	return msg, mapError(err)
}

func (c *sessionClient) EditEmbeds(ctx context.Context, channelID, messageID string, embeds []*discordgo.MessageEmbed) error {
	_, err := c.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: channelID,
		ID:      messageID,
		Embeds:  &embeds,
	}, discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *sessionClient) AttachComponents(ctx context.Context, channelID, messageID string, components []discordgo.MessageComponent) error {
	_, err := c.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *sessionClient) DirectMessage(ctx context.Context, userID, content string) error {
	channel, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	_, err = c.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *sessionClient) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return mapError(c.session.GuildMemberRoleAdd(guildID, userID, roleID, requestOptions(ctx, reason)...))
}

func (c *sessionClient) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return mapError(c.session.GuildMemberRoleRemove(guildID, userID, roleID, requestOptions(ctx, reason)...))
}

// SetSendLocked denies or clears SendMessages on the role overwrite while
// keeping every other bit of the overwrite as it was.
func (c *sessionClient) SetSendLocked(ctx context.Context, channelID, roleID string, locked bool, reason string) error {
	channel, err := c.Channel(ctx, channelID)
	if err != nil {
		return err
	}
	var allow, deny int64
	found := false
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == roleID {
			allow, deny, found = overwrite.Allow, overwrite.Deny, true
			break
		}
	}
	if !found && !locked {
		return nil
	}
	allow &^= discordgo.PermissionSendMessages
	if locked {
		deny |= discordgo.PermissionSendMessages
	} else {
		deny &^= discordgo.PermissionSendMessages
	}
	options := requestOptions(ctx, reason)
	if allow == 0 && deny == 0 {
		return mapError(c.session.ChannelPermissionDelete(channelID, roleID, options...))
	}
	return mapError(c.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, allow, deny, options...))
}

func (c *sessionClient) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	return mapError(c.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx)))
}

func (c *sessionClient) Kick(ctx context.Context, guildID, userID, reason string) error {
	return mapError(c.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)))
}

func (c *sessionClient) Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	return mapError(c.session.GuildMemberTimeout(guildID, userID, until, requestOptions(ctx, reason)...))
}
