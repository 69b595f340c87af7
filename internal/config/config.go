package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string          `yaml:"discord_token" validate:"required"`
	ApplicationID string          `yaml:"application_id" validate:"required"`
	GuildID       string          `yaml:"guild_id" validate:"required"`
	LogLevel      string          `yaml:"log_level"`
	Storage       StorageConfig   `yaml:"storage"`
	Health        HealthConfig    `yaml:"health"`
	Roles         RoleConfig      `yaml:"roles"`
	Lockdown      LockdownConfig  `yaml:"lockdown"`
	Clearance     ClearanceConfig `yaml:"clearance"`
	Thresholds    Thresholds      `yaml:"thresholds"`
	Poll          PollConfig      `yaml:"poll"`
	Pings         PingConfig      `yaml:"pings"`
	Notifications NotifyConfig    `yaml:"notifications"`
}

type StorageConfig struct {
	Driver  string `yaml:"driver" validate:"oneof=json sqlite postgres"`
	DataDir string `yaml:"data_dir" validate:"required_if=Driver json"`
	Path    string `yaml:"path" validate:"required_if=Driver sqlite"`
	DSN     string `yaml:"dsn" validate:"required_if=Driver postgres"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type RoleConfig struct {
	SSUHostRoleID   string `yaml:"ssu_host_role_id"`
	SSUPingRoleID   string `yaml:"ssu_ping_role_id"`
	SSUBegRoleID    string `yaml:"ssu_beg_role_id"`
	SSUReviveRoleID string `yaml:"ssu_revive_role_id"`
}

type LockdownConfig struct {
	ChannelIDs  []string `yaml:"channel_ids"`
	Concurrency int      `yaml:"concurrency" validate:"min=0"`
}

// ClearanceConfig.RoleIDs maps a clearance tag (L1..L5, SITE_DIRECTOR) to the
// guild role granted when the level is set. Empty values disable the sync.
type ClearanceConfig struct {
	Source  string            `yaml:"source" validate:"oneof=roles store"`
	RoleIDs map[string]string `yaml:"role_ids"`
}

type Thresholds struct {
	AnnounceLevel int `yaml:"announce_level" validate:"min=0"`
}

type PollConfig struct {
	TTLMinutes      int    `yaml:"ttl_minutes" validate:"min=0"`
	DefaultQuestion string `yaml:"default_question"`
}

type PingConfig struct {
	CooldownMax     int `yaml:"cooldown_max" validate:"min=0"`
	CooldownSeconds int `yaml:"cooldown_seconds" validate:"min=0"`
}

type NotifyConfig struct {
	DMNoticeEnabled bool        `yaml:"dm_notice_enabled"`
	ModLogChannel   string      `yaml:"mod_log_channel"`
	GameServerName  string      `yaml:"game_server_name"`
	EmbedColors     EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Storage:  StorageConfig{Driver: "json", DataDir: "data", Path: "data/site89.db"},
		Health:   HealthConfig{Enabled: false, Addr: ":8080"},
		Lockdown: LockdownConfig{Concurrency: 4},
		Clearance: ClearanceConfig{
			Source:  "roles",
			RoleIDs: map[string]string{},
		},
		Thresholds: Thresholds{AnnounceLevel: 4},
		Poll:       PollConfig{TTLMinutes: 24 * 60, DefaultQuestion: "Should we host an SSU soon?"},
		Pings:      PingConfig{CooldownMax: 1, CooldownSeconds: 300},
		Notifications: NotifyConfig{
			DMNoticeEnabled: true,
			GameServerName:  "Site-44",
			EmbedColors: EmbedColors{
				Action:  0x3B82F6,
				Warning: 0xF59E0B,
				Error:   0xEF4444,
			},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// A missing .env is normal in containers; variables then come from the environment.
	_ = godotenv.Load()

	applyEnv(&cfg)
	cfg.Clearance.Source = normalizeSource(cfg.Clearance.Source)
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or malformed setting using the
// environment variable name operators are expected to set.
func Validate(cfg Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	first := fieldErrs[0]
	switch first.StructNamespace() {
	case "Config.DiscordToken":
		return errors.New("DISCORD_TOKEN is required")
	case "Config.ApplicationID":
		return errors.New("APPLICATION_ID is required")
	case "Config.GuildID":
		return errors.New("GUILD_ID is required")
	}
	return fmt.Errorf("invalid config %s: failed %q", first.Namespace(), first.Tag())
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("TOKEN", cfg.DiscordToken)
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.ApplicationID = envString("CLIENT_ID", cfg.ApplicationID)
	cfg.ApplicationID = envString("APPLICATION_ID", cfg.ApplicationID)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Storage.Driver = envString("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DataDir = envString("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.Path = envString("DATABASE_PATH", cfg.Storage.Path)
	cfg.Storage.DSN = envString("DATABASE_URL", cfg.Storage.DSN)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Roles.SSUHostRoleID = envString("SSU_HOST_ROLE_ID", cfg.Roles.SSUHostRoleID)
	cfg.Roles.SSUPingRoleID = envString("SSU_PING_ROLE_ID", cfg.Roles.SSUPingRoleID)
	cfg.Roles.SSUBegRoleID = envString("SSU_BEG_ROLE_ID", cfg.Roles.SSUBegRoleID)
	cfg.Roles.SSUReviveRoleID = envString("SSU_REVIVE_ROLE_ID", cfg.Roles.SSUReviveRoleID)
	cfg.Lockdown.ChannelIDs = envList("LOCKDOWN_CHANNEL_IDS", cfg.Lockdown.ChannelIDs)
	cfg.Clearance.Source = envString("CLEARANCE_SOURCE", cfg.Clearance.Source)
	cfg.Thresholds.AnnounceLevel = envInt("ANNOUNCE_LEVEL", cfg.Thresholds.AnnounceLevel)
	cfg.Poll.TTLMinutes = envInt("POLL_TTL_MINUTES", cfg.Poll.TTLMinutes)
	cfg.Pings.CooldownMax = envInt("PING_COOLDOWN_MAX", cfg.Pings.CooldownMax)
	cfg.Pings.CooldownSeconds = envInt("PING_COOLDOWN_SECONDS", cfg.Pings.CooldownSeconds)
	cfg.Notifications.DMNoticeEnabled = envBool("DM_NOTICE_ENABLED", cfg.Notifications.DMNoticeEnabled)
	cfg.Notifications.ModLogChannel = envString("MOD_LOG_CHANNEL", cfg.Notifications.ModLogChannel)
	cfg.Notifications.GameServerName = envString("GAME_SERVER_NAME", cfg.Notifications.GameServerName)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeSource only folds case; unknown values are left for Validate to reject.
func normalizeSource(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "roles"
	}
	return value
}
