package bot

import (
	"context"
	"fmt"
	"time"

	"site89-bot/internal/audit"
	"site89-bot/internal/config"
	"site89-bot/internal/gate"
	"site89-bot/internal/poll"
	"site89-bot/internal/storage"
	"site89-bot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const interactionTimeout = 15 * time.Second

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *storage.Store
	audit   *audit.Logger
	polls   *poll.Tally
	pings   *utils.Cooldown
	levels  gate.LevelSource
	router  *Router
	client  Client
	session *discordgo.Session
	stats   func(context.Context) systemStats
	started time.Time
	now     func() time.Time
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	b := newBot(cfg, logger, store, auditLogger, newSessionClient(session))
	b.session = session
	return b, nil
}

func newBot(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, client Client) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		audit:   auditLogger,
		polls:   poll.New(time.Duration(cfg.Poll.TTLMinutes) * time.Minute),
		pings:   utils.NewCooldown(cfg.Pings.CooldownMax, time.Duration(cfg.Pings.CooldownSeconds)*time.Second),
		router:  NewRouter(logger),
		client:  client,
		stats:   collectSystemStats,
		started: time.Now(),
		now:     time.Now,
	}
	if cfg.Clearance.Source == "store" {
		b.levels = gate.StoredClearance{Store: store}
	} else {
		b.levels = gate.RoleNames{}
	}
	if b.audit != nil {
		b.audit.SetNotifier(b.notifyModLog)
	}
	b.registerHandlers()
	return b
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}); err != nil {
			b.logger.Warn("defer interaction failed", zap.Error(err))
			return
		}
		req := b.requestFromInteraction(ctx, interaction)
		reply := b.router.Dispatch(ctx, req)
		b.editReply(session, interaction, reply)
	case discordgo.InteractionMessageComponent:
		b.onComponent(session, interaction)
	}
}

func (b *Bot) onComponent(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.MessageComponentData()
	pollID, choice, ok := poll.ParseCustomID(data.CustomID)
	if !ok {
		return
	}
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	embed, notice := b.vote(pollID, user.ID, choice)
	if embed == nil {
		b.respond(session, interaction, notice, true)
		return
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
	if err != nil {
		b.logger.Warn("poll update failed", zap.String("poll_id", pollID), zap.Error(err))
	}
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

// requestFromInteraction flattens a slash command into a Request. Role names
// are resolved from the guild so level policies can read them.
func (b *Bot) requestFromInteraction(ctx context.Context, interaction *discordgo.InteractionCreate) *Request {
	data := interaction.ApplicationCommandData()
	req := &Request{
		Name:      data.Name,
		GuildID:   interaction.GuildID,
		ChannelID: interaction.ChannelID,
	}
	if user := interactionUser(interaction); user != nil {
		req.Invoker.ID = user.ID
		req.Invoker.Username = user.Username
	}

	options := data.Options
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		req.Subcommand = options[0].Name
		options = options[0].Options
	}
	for _, opt := range options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			req.Options.SetString(opt.Name, opt.StringValue())
		case discordgo.ApplicationCommandOptionInteger:
			req.Options.SetInt(opt.Name, opt.IntValue())
		case discordgo.ApplicationCommandOptionUser:
			id, _ := opt.Value.(string)
			value := UserOption{ID: id}
			if data.Resolved != nil {
				if user := data.Resolved.Users[id]; user != nil {
					value.Username = user.Username
				}
			}
			req.Options.SetUser(opt.Name, value)
		case discordgo.ApplicationCommandOptionRole:
			id, _ := opt.Value.(string)
			value := RoleOption{ID: id}
			if data.Resolved != nil {
				if role := data.Resolved.Roles[id]; role != nil {
					value.Name = role.Name
					value.Position = role.Position
				}
			}
			req.Options.SetRole(opt.Name, value)
		}
	}

	if interaction.Member == nil || req.GuildID == "" {
		return req
	}
	req.Invoker.Permissions = interaction.Member.Permissions

	names := make(map[string]string)
	roles, err := b.client.GuildRoles(ctx, req.GuildID)
	if err != nil {
		b.logger.Warn("resolve roles failed", zap.String("guild_id", req.GuildID), zap.Error(err))
	}
	for _, role := range roles {
		names[role.ID] = role.Name
	}
	for _, id := range interaction.Member.Roles {
		req.Invoker.Roles = append(req.Invoker.Roles, gate.Role{ID: id, Name: names[id]})
	}
	return req
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) editReply(session *discordgo.Session, interaction *discordgo.InteractionCreate, reply *Reply) {
	edit := &discordgo.WebhookEdit{}
	if reply.Content != "" {
		content := reply.Content
		edit.Content = &content
	}
	if reply.Embed != nil {
		embeds := []*discordgo.MessageEmbed{reply.Embed}
		edit.Embeds = &embeds
	}
	if _, err := session.InteractionResponseEdit(interaction.Interaction, edit); err != nil {
		b.logger.Warn("edit reply failed", zap.String("command", interaction.ApplicationCommandData().Name), zap.Error(err))
	}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   b.now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) notifyModLog(ctx context.Context, entry audit.Entry) {
	channelID := b.cfg.Notifications.ModLogChannel
	if channelID == "" {
		return
	}
	color := b.cfg.Notifications.EmbedColors.Action
	if entry.Level != audit.LevelInfo {
		color = b.cfg.Notifications.EmbedColors.Warning
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Moderator", Value: mention(entry.ActorID), Inline: true},
	}
	if entry.TargetID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Target", Value: mention(entry.TargetID), Inline: true})
	}
	embed := b.commandEmbed("🛡️ "+entry.Event, entry.Details, color, fields)
	if _, err := b.client.SendMessage(ctx, channelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		b.logger.Warn("mod log post failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (b *Bot) record(ctx context.Context, req *Request, level, event, targetID, details string) {
	b.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Invoker.ID,
		TargetID: targetID,
		Level:    level,
		Event:    event,
		Details:  details,
	})
}

func mention(userID string) string {
	if userID == "" {
		return "unknown"
	}
	return fmt.Sprintf("<@%s>", userID)
}

func roleMention(roleID string) string {
	return fmt.Sprintf("<@&%s>", roleID)
}
