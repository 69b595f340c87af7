package bot

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
)

type systemStats struct {
	RSSBytes uint64
	Platform string
}

func collectSystemStats(ctx context.Context) systemStats {
	stats := systemStats{Platform: runtime.GOOS + " " + runtime.GOARCH}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
			stats.RSSBytes = mem.RSS
		}
	}
	if info, err := host.InfoWithContext(ctx); err == nil && info.Platform != "" {
		stats.Platform = fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, runtime.GOARCH)
	}
	return stats
}

func (b *Bot) handleStatus(ctx context.Context, _ *Request) (*Reply, error) {
	stats := b.stats(ctx)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Uptime", Value: formatUptime(b.now().Sub(b.started)), Inline: true},
		{Name: "WebSocket Ping", Value: fmt.Sprintf("%dms", b.client.Latency().Milliseconds()), Inline: true},
		{Name: "Memory (RSS)", Value: fmt.Sprintf("%d MB", stats.RSSBytes/1024/1024), Inline: true},
		{Name: "Go", Value: runtime.Version(), Inline: true},
		{Name: "Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
		{Name: "Platform", Value: stats.Platform, Inline: true},
	}
	embed := b.commandEmbed("📡 Site-89 Bot Status", "Bot is online and responding.", b.cfg.Notifications.EmbedColors.Action, fields)
	return &Reply{Embed: embed}, nil
}

func (b *Bot) handleServerInfo(ctx context.Context, req *Request) (*Reply, error) {
	guild, err := b.client.Guild(ctx, req.GuildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild: %w", err)
	}
	created := "unknown"
	if ts, err := discordgo.SnowflakeTimestamp(guild.ID); err == nil {
		created = fmt.Sprintf("<t:%d:R>", ts.Unix())
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "👑 Owner", Value: mention(guild.OwnerID), Inline: true},
		{Name: "👥 Members", Value: fmt.Sprintf("%d", guild.MemberCount), Inline: true},
		{Name: "📅 Created", Value: created, Inline: true},
		{Name: "ID", Value: guild.ID, Inline: false},
	}
	embed := b.commandEmbed("🏢 "+guild.Name, "", b.cfg.Notifications.EmbedColors.Action, fields)
	return &Reply{Embed: embed}, nil
}

func formatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	mins := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	parts = append(parts, fmt.Sprintf("%ds", secs))
	return strings.Join(parts, " ")
}
