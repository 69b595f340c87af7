package bot

import (
	"context"
	"strings"

	"site89-bot/internal/gate"

	"github.com/bwmarrin/discordgo"
)

const defaultReason = "No reason provided."

func (b *Bot) registerHandlers() {
	manageRoles := gate.RequirePermission(discordgo.PermissionManageRoles, "Manage Roles")
	kick := gate.RequirePermission(discordgo.PermissionKickMembers, "Kick Members")
	ban := gate.RequirePermission(discordgo.PermissionBanMembers, "Ban Members")
	moderate := gate.RequirePermission(discordgo.PermissionModerateMembers, "Moderate Members")
	manageChannels := gate.RequirePermission(discordgo.PermissionManageChannels, "Manage Channels")
	comms := gate.RequireLevel(b.cfg.Thresholds.AnnounceLevel, b.levels)
	ssuHost := gate.RequireRole("SSU Host", b.cfg.Roles.SSUHostRoleID)

	commands := []Command{
		{Name: "help", Run: b.handleHelp},
		{Name: "status", Run: b.handleStatus},
		{Name: "serverinfo", Run: b.handleServerInfo},
		{Name: "announce", Policy: comms, Run: b.handleBroadcast},
		{Name: "intercom", Policy: comms, Run: b.handleBroadcast},
		{Name: "addrole", Policy: manageRoles, Run: b.handleRoleChange},
		{Name: "removerole", Policy: manageRoles, Run: b.handleRoleChange},
		{Name: "kick", Policy: kick, Run: b.handleKick},
		{Name: "ban", Policy: ban, Run: b.handleBan},
		{Name: "timeout", Policy: moderate, Run: b.handleTimeout},
		{Name: "untimeout", Policy: moderate, Run: b.handleUntimeout},
		{Name: "warn", Policy: moderate, Run: b.handleWarn},
		{Name: "warnings", Policy: moderate, Run: b.handleWarnings},
		{Name: "unwarn", Policy: moderate, Run: b.handleUnwarn},
		{Name: "editwarn", Policy: moderate, Run: b.handleEditWarn},
		{Name: "clearwarns", Policy: moderate, Run: b.handleClearWarns},
		{Name: "clearance", Subpolicies: map[string]gate.Policy{"set": manageRoles}, Run: b.handleClearance},
		{Name: "lockdown", Policy: manageChannels, Run: b.handleLockdown},
		{Name: "unlockdown", Policy: manageChannels, Run: b.handleLockdown},
		{Name: "ssu", Policy: ssuHost, Run: b.handleSSU},
		{Name: "ssd", Policy: ssuHost, Run: b.handleSSD},
		{Name: "ssupoll", Policy: ssuHost, Run: b.handleSSUPoll},
		{Name: "ssutakeover", Policy: ssuHost, Run: b.handleSSUTakeover},
		{Name: "ssubeg", Run: b.handleSSUPing},
		{Name: "ssurevive", Run: b.handleSSUPing},
	}
	for _, cmd := range commands {
		b.router.Register(cmd)
	}
}

func (b *Bot) handleHelp(_ context.Context, _ *Request) (*Reply, error) {
	lines := []string{
		"**General**: /help, /status, /serverinfo",
		"**Comms (Level-4+)**: /announce, /intercom",
		"**Roles**: /addrole, /removerole",
		"**Moderation**: /kick, /ban, /timeout, /untimeout",
		"**Warnings**: /warn, /warnings, /unwarn, /editwarn, /clearwarns",
		"**Clearance**: /clearance set (staff), /clearance get, /clearance list",
		"**Security**: /lockdown, /unlockdown",
		"**SSU**: /ssu, /ssd, /ssupoll, /ssutakeover, /ssubeg, /ssurevive",
	}
	embed := b.commandEmbed("🧾 Site-89 Bot Commands", strings.Join(lines, "\n"), b.cfg.Notifications.EmbedColors.Action, nil)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Missing a command? Run: site89 deploy"}
	return &Reply{Embed: embed}, nil
}

// requireUser reads a mandatory user option. A nil reply means it was present.
func requireUser(req *Request, name string) (UserOption, *Reply) {
	user, ok := req.Options.User(name)
	if !ok || user.ID == "" {
		return UserOption{}, textReply("❌ Missing option **%s**.", name)
	}
	return user, nil
}

func displayUser(user UserOption) string {
	if user.Username != "" {
		return "**" + user.Username + "**"
	}
	return mention(user.ID)
}
