package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"site89-bot/internal/audit"
	"site89-bot/internal/bot"
	"site89-bot/internal/config"
	"site89-bot/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "site89",
	Short:         "Site-89 moderation and SSU bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          func(cmd *cobra.Command, args []string) error { return serve() },
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and handle commands",
	RunE:  func(cmd *cobra.Command, args []string) error { return serve() },
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Register slash commands for the configured guild",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() {
			_ = logger.Sync()
		}()
		return bot.Deploy(cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, deployCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = os.Stderr.WriteString("site89: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func serve() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.Open(openCtx, cfg.Storage, logger)
	cancelOpen()
	if err != nil {
		logger.Error("storage init failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
		return err
	}
	defer store.Close()

	auditLogger := audit.NewLogger(logger)
	botSvc, err := bot.New(cfg, logger, store, auditLogger)
	if err != nil {
		logger.Error("bot init failed", zap.Error(err))
		return err
	}
	if err := botSvc.Start(); err != nil {
		logger.Error("bot start failed", zap.Error(err))
		return err
	}
	logger.Info("bot started", zap.String("guild_id", cfg.GuildID), zap.String("storage", cfg.Storage.Driver))

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
	return nil
}
