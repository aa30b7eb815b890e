package main

import (
	"context"
	"fmt"
	"io"

	"github.com/apiaryworks/hivemind/internal/feed"
	"github.com/apiaryworks/hivemind/internal/readings"
)

// runFeed handles the "hivemind feed" subcommand. It subscribes to the
// configured MQTT topic and stores incoming sensor readings until
// interrupted.
func runFeed(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configLogger(stdout, cfg)
	logger.Info("config loaded", "path", cfgPath)

	if !cfg.Feed.Enabled {
		return fmt.Errorf("feed is disabled in config (set feed.enabled: true)")
	}
	if cfg.Feed.Broker == "" {
		return fmt.Errorf("feed.broker is required")
	}

	store, err := readings.NewStore(cfg.SensorDBPath())
	if err != nil {
		return fmt.Errorf("open sensor database: %w", err)
	}
	defer store.Close()

	sub := feed.New(cfg.Feed, store, logger)
	logger.Info("feed starting", "broker", cfg.Feed.Broker, "topic", cfg.Feed.Topic)

	if err := sub.Run(ctx); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	return nil
}
