package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/memo-567/geogram-sub008/internal/cache"
	"github.com/memo-567/geogram-sub008/internal/config"
	"github.com/memo-567/geogram-sub008/internal/logging"
	"github.com/memo-567/geogram-sub008/station"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("geogram-sync starting",
		slog.String("version", Version),
		slog.String("station", cfg.StationURL),
		slog.String("callsign", cfg.Callsign),
		slog.String("cache", cfg.CacheDir),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.Open(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	client := station.NewClient(nil)
	monitor := station.NewMonitor(client, cfg.StationURL, cfg.ReachabilityInterval,
		logging.ForComponent(logger, "monitor"))
	realtime := station.NewRealtime(cfg.WebSocketURL(),
		logging.ForComponent(logger, "realtime"))

	engine := station.NewEngine(client, store, monitor, realtime, nil, station.EngineConfig{
		StationURL:           cfg.StationURL,
		Callsign:             cfg.Callsign,
		PageLimit:            cfg.PageLimit,
		CursorLimit:          cfg.CursorLimit,
		PollInterval:         cfg.PollInterval,
		AutoDownloadMaxBytes: cfg.AutoDownloadMaxBytes,
		AutoDownloadMaxAge:   cfg.AutoDownloadMaxAge,
		MaxAttachmentBytes:   cfg.MaxAttachmentBytes,
	}, logging.ForComponent(logger, "engine"))

	// A regained station means the cache may be arbitrarily stale, and
	// the identity may never have been resolved at all if the initial
	// open failed.
	monitor.OnChange(func(online bool) {
		if online {
			engine.RefreshStation(ctx)
			engine.ResyncSelected(ctx)
		}
	})

	rooms, offline := engine.OpenStation(ctx)
	if len(offline) > 0 {
		logger.Info("browsing cached history",
			slog.Int("known_devices", len(offline)))
	}

	logger.Info("station opened",
		slog.String("cache_key", engine.CacheKey()),
		slog.Int("rooms", len(rooms)),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return realtime.Run(gctx) })
	g.Go(func() error { return engine.Run(gctx) })

	// Drain room updates. A UI frontend would render these; the daemon
	// logs them so headless runs still show sync progress.
	g.Go(func() error {
		for {
			select {
			case u := <-engine.Updates():
				logger.Info("room updated",
					slog.String("room", u.RoomID),
					slog.Int("messages", len(u.Messages)),
				)

			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("geogram-sync stopped")
		return nil
	}

	return err
}
