package bot

import (
	"fmt"

	"site89-bot/internal/clearance"
	"site89-bot/internal/config"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func permissionDefault(bit int64) *int64 {
	return &bit
}

func userOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    required,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return stringOption("reason", "Reason", false)
}

func warnIDOption() *discordgo.ApplicationCommandOption {
	minID := 1.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "warn_id",
		Description: "Warning ID",
		Required:    true,
		MinValue:    &minID,
	}
}

func clearanceChoices() []*discordgo.ApplicationCommandOptionChoice {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, level := range clearance.Levels() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: level.DisplayName(), Value: string(level)})
	}
	return choices
}

// applicationCommands is the slash command set pushed to the guild.
func applicationCommands() []*discordgo.ApplicationCommand {
	minMinutes, minDays := 1.0, 0.0
	manageRoles := permissionDefault(discordgo.PermissionManageRoles)
	moderate := permissionDefault(discordgo.PermissionModerateMembers)

	return []*discordgo.ApplicationCommand{
		{Name: "help", Description: "List bot commands"},
		{Name: "status", Description: "Show bot status"},
		{Name: "serverinfo", Description: "Show server information"},
		{
			Name:        "announce",
			Description: "Post an announcement (Level-4+)",
			Options:     []*discordgo.ApplicationCommandOption{stringOption("message", "Announcement text", true)},
		},
		{
			Name:        "intercom",
			Description: "Broadcast over the intercom (Level-4+)",
			Options:     []*discordgo.ApplicationCommandOption{stringOption("message", "Broadcast text", true)},
		},
		{
			Name:                     "addrole",
			Description:              "Add a role to a member",
			DefaultMemberPermissions: manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member", true),
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role", Required: true},
			},
		},
		{
			Name:                     "removerole",
			Description:              "Remove a role from a member",
			DefaultMemberPermissions: manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member", true),
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role", Required: true},
			},
		},
		{
			Name:                     "kick",
			Description:              "Kick a member",
			DefaultMemberPermissions: permissionDefault(discordgo.PermissionKickMembers),
			Options:                  []*discordgo.ApplicationCommandOption{userOption("Member to kick", true), reasonOption()},
		},
		{
			Name:                     "ban",
			Description:              "Ban a user",
			DefaultMemberPermissions: permissionDefault(discordgo.PermissionBanMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to ban", true),
				reasonOption(),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delete_days",
					Description: "Days of messages to delete (0-7)",
					MinValue:    &minDays,
					MaxValue:    7,
				},
			},
		},
		{
			Name:                     "timeout",
			Description:              "Time out a member",
			DefaultMemberPermissions: moderate,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member", true),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Duration in minutes",
					Required:    true,
					MinValue:    &minMinutes,
					MaxValue:    maxTimeoutMinutes,
				},
				reasonOption(),
			},
		},
		{
			Name:                     "untimeout",
			Description:              "Remove a member's timeout",
			DefaultMemberPermissions: moderate,
			Options:                  []*discordgo.ApplicationCommandOption{userOption("Member", true), reasonOption()},
		},
		{
			Name:                     "warn",
			Description:              "Warn a member",
			DefaultMemberPermissions: moderate,
			Options:                  []*discordgo.ApplicationCommandOption{userOption("Member", true), stringOption("reason", "Reason", true)},
		},
		{
			Name:                     "warnings",
			Description:              "Show a member's warnings",
			DefaultMemberPermissions: moderate,
			Options:                  []*discordgo.ApplicationCommandOption{userOption("Member", true)},
		},
		{
			Name:                     "unwarn",
			Description:              "Remove a warning",
			DefaultMemberPermissions: moderate,
			Options:                  []*discordgo.ApplicationCommandOption{userOption("Member", true), warnIDOption()},
		},
		{
			Name:                     "editwarn",
			Description:              "Edit a warning's reason",
			DefaultMemberPermissions: moderate,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member", true),
				warnIDOption(),
				stringOption("reason", "New reason", true),
			},
		},
		{
			Name:                     "clearwarns",
			Description:              "Clear all warnings for a member",
			DefaultMemberPermissions: moderate,
			Options:                  []*discordgo.ApplicationCommandOption{userOption("Member", true)},
		},
		{
			Name:        "clearance",
			Description: "Manage clearance levels",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Set a member's clearance (staff)",
					Options: []*discordgo.ApplicationCommandOption{
						userOption("Member", true),
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "level",
							Description: "Clearance level",
							Required:    true,
							Choices:     clearanceChoices(),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "get",
					Description: "Show a member's clearance",
					Options:     []*discordgo.ApplicationCommandOption{userOption("Member (defaults to you)", false)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List clearance records",
				},
			},
		},
		{
			Name:                     "lockdown",
			Description:              "Lock the configured channels",
			DefaultMemberPermissions: permissionDefault(discordgo.PermissionManageChannels),
			Options:                  []*discordgo.ApplicationCommandOption{reasonOption()},
		},
		{
			Name:                     "unlockdown",
			Description:              "Unlock the configured channels",
			DefaultMemberPermissions: permissionDefault(discordgo.PermissionManageChannels),
			Options:                  []*discordgo.ApplicationCommandOption{reasonOption()},
		},
		{Name: "ssu", Description: "Post a Server Start Up"},
		{Name: "ssd", Description: "Post a Server Shutdown"},
		{
			Name:        "ssupoll",
			Description: "Post an SSU poll",
			Options:     []*discordgo.ApplicationCommandOption{stringOption("question", "Poll question", false)},
		},
		{Name: "ssutakeover", Description: "Take over the last SSU as host"},
		{Name: "ssubeg", Description: "Ask for an SSU"},
		{Name: "ssurevive", Description: "Call for an SSU revive"},
	}
}

func (b *Bot) registerCommands() error {
	return overwriteCommands(b.session, b.cfg, b.logger)
}

func overwriteCommands(session *discordgo.Session, cfg config.Config, logger *zap.Logger) error {
	registered, err := session.ApplicationCommandBulkOverwrite(cfg.ApplicationID, cfg.GuildID, applicationCommands())
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	logger.Info("commands registered", zap.String("guild_id", cfg.GuildID), zap.Int("count", len(registered)))
	return nil
}

// Deploy pushes the slash command set over REST without opening the gateway.
func Deploy(cfg config.Config, logger *zap.Logger) error {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return err
	}
	return overwriteCommands(session, cfg, logger)
}
