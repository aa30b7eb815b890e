package main

import (
	"context"
	"fmt"
	"io"

	"github.com/apiaryworks/hivemind/internal/embeddings"
	"github.com/apiaryworks/hivemind/internal/manual"
)

// runIngest handles the "hivemind ingest [dir]" subcommand. It chunks
// every markdown and PDF document under the doc directory, embeds the
// chunks, and rebuilds the Bee Manual database from scratch.
func runIngest(ctx context.Context, stdout io.Writer, configPath, dir string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configLogger(stdout, cfg)
	logger.Info("config loaded", "path", cfgPath)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.DocDir
	}

	store, err := manual.NewStore(cfg.ManualDBPath())
	if err != nil {
		return fmt.Errorf("open manual database: %w", err)
	}
	defer store.Close()

	embedder := embeddings.New(embeddings.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.Embeddings.Model,
	})

	count, err := manual.NewIngester(store, embedder, logger).IngestDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(stdout, "Bee Manual rebuilt: %d chunks from %s\n", count, dir)
	return nil
}
