package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/combatplay/internal/config"
	"github.com/udisondev/combatplay/internal/db"
	"github.com/udisondev/combatplay/internal/replayserver"
)

const ConfigPath = "config/replay.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("COMBATPLAY_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("replay daemon starting",
		"log_level", cfg.LogLevel,
		"bind", cfg.Server.BindAddress,
		"port", cfg.Server.Port,
		"database", cfg.Database.Enabled)

	var (
		logs replayserver.LogStore
		opts []replayserver.ServerOption
	)
	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		version, err := db.RunMigrations(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database schema ready", "version", version)

		logs = db.NewCombatLogRepository(database.Pool())
		opts = append(opts,
			replayserver.WithOutcomeStore(db.NewOutcomeRepository(database.Pool())),
			replayserver.WithPinger(database))
	} else {
		mem := replayserver.NewMemoryStore()
		logs = mem
		opts = append(opts, replayserver.WithOutcomeStore(replayserver.OutcomeFunc(mem.SaveOutcome)))
		slog.Warn("database disabled, combat logs are kept in memory")
	}

	srv := replayserver.NewServer(cfg, logs, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("replay server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("replay daemon stopped")
	return nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
