// Headless combat replay: plays combat log files with timed renderers and
// prints one JSON summary per log.
//
// Usage:
//
//	go run ./cmd/replay [-speed 3] [-skip] [-instant] logs/*.json fixtures/*.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/combatplay/internal/battle/dispatch"
	"github.com/udisondev/combatplay/internal/battle/outcome"
	"github.com/udisondev/combatplay/internal/battle/player"
	"github.com/udisondev/combatplay/internal/battle/session"
	"github.com/udisondev/combatplay/internal/combatlog"
	"github.com/udisondev/combatplay/internal/config"
)

const ConfigPath = "config/replay.yaml"

type options struct {
	speed   int
	skip    bool
	instant bool
	files   []string
}

func main() {
	var opts options
	flag.IntVar(&opts.speed, "speed", 0, "playback speed 1, 2 or 3 (default from config)")
	flag.BoolVar(&opts.skip, "skip", false, "skip to the end as soon as playback starts")
	flag.BoolVar(&opts.instant, "instant", false, "show every item for zero time")
	flag.Parse()
	opts.files = flag.Args()

	if len(opts.files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: replay [flags] <log file>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfgPath := ConfigPath
	if p := os.Getenv("COMBATPLAY_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	if opts.speed != 0 {
		cfg.Playback.DefaultSpeed = player.Speed(opts.speed)
		if !cfg.Playback.DefaultSpeed.Valid() {
			return fmt.Errorf("%w: %d", player.ErrInvalidSpeed, opts.speed)
		}
	}
	durations := cfg.Playback.DisplayDurations()
	if opts.instant {
		for typ := range durations {
			durations[typ] = 0
		}
	}

	r := &replayer{
		renderers:   dispatch.TimedRenderers(durations),
		sessionOpts: cfg.Playback.SessionOptions(cfg.Catalog()),
		skip:        opts.skip,
		enc:         json.NewEncoder(out),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))
	for _, path := range opts.files {
		g.Go(func() error {
			return r.replay(gctx, path)
		})
	}
	return g.Wait()
}

type replayer struct {
	renderers   dispatch.Renderers
	sessionOpts []session.Option
	skip        bool

	mu  sync.Mutex
	enc *json.Encoder
}

type result struct {
	File string `json:"file"`
	outcome.Summary
}

func (r *replayer) replay(ctx context.Context, path string) error {
	l, err := combatlog.Load(path)
	if err != nil {
		return err
	}

	sess, err := session.New(l, r.renderers, r.sessionOpts...)
	if err != nil {
		return fmt.Errorf("replaying %s: %w", path, err)
	}
	if r.skip {
		sess.Skip()
	}

	sum, err := sess.Run(ctx)
	if err != nil {
		return fmt.Errorf("replaying %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(result{File: path, Summary: sum})
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
