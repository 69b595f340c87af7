package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Entry is one moderation action, such as a ban or a warning.
type Entry struct {
	GuildID   string
	ActorID   string
	TargetID  string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

type Logger struct {
	logger *zap.Logger
	notify func(context.Context, Entry)
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

// SetNotifier registers a callback, typically a post to the mod-log channel.
func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, entry Entry) {
	if l == nil {
		return
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", entry.Level),
		zap.String("guild_id", entry.GuildID),
		zap.String("actor_id", entry.ActorID),
		zap.String("target_id", entry.TargetID),
		zap.String("event", entry.Event),
		zap.String("details", entry.Details),
	)
}
