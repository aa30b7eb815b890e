package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/apiaryworks/hivemind/internal/config"
	"github.com/apiaryworks/hivemind/internal/defaults"
	"github.com/apiaryworks/hivemind/internal/embeddings"
	"github.com/apiaryworks/hivemind/internal/manual"
	"github.com/apiaryworks/hivemind/internal/readings"
)

// runInit initializes a hivemind working directory: default config,
// doc directory, seeded sensor database, and (when documents and an API
// key are available) the Bee Manual database. Existing files are never
// overwritten and an already-populated sensor database is left alone,
// so init is safe to re-run.
func runInit(ctx context.Context, w io.Writer, configPath, dir string) error {
	fmt.Fprintf(w, "Initializing hivemind workspace in %s\n", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	cfgFile := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(cfgFile, defaults.ConfigYAML); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", cfgFile)

	// Load the config we just ensured exists (or the explicit one).
	if configPath == "" {
		configPath = cfgFile
	}
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(dir, cfg.DataDir)
	}
	if !filepath.IsAbs(cfg.DocDir) {
		cfg.DocDir = filepath.Join(dir, cfg.DocDir)
	}
	logger := configLogger(w, cfg)

	for _, sub := range []string{cfg.DataDir, cfg.DocDir} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}

	// Sensor database with demo readings.
	store, err := readings.NewStore(cfg.SensorDBPath())
	if err != nil {
		return fmt.Errorf("open sensor database: %w", err)
	}
	defer store.Close()

	n, err := store.Seed(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seed sensor database: %w", err)
	}
	if n > 0 {
		fmt.Fprintf(w, "  ✓ %s (seeded %d readings)\n", cfg.SensorDBPath(), n)
	} else {
		fmt.Fprintf(w, "  ✓ %s (already contains data, seed skipped)\n", cfg.SensorDBPath())
	}

	// Bee Manual database. Needs documents and an API key for
	// embeddings; when either is missing the manual is deferred to
	// `hivemind ingest`.
	if err := initManual(ctx, w, cfg, logger); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment ready. Run 'hivemind ask <question>' to consult the hive.")
	return nil
}

func initManual(ctx context.Context, w io.Writer, cfg *config.Config, logger *slog.Logger) error {
	entries, err := os.ReadDir(cfg.DocDir)
	if err != nil || len(entries) == 0 {
		fmt.Fprintf(w, "  - no documents in %s; add markdown or PDF files and run 'hivemind ingest'\n", cfg.DocDir)
		return nil
	}
	if cfg.OpenAI.APIKey == "" {
		fmt.Fprintln(w, "  - openai.api_key not set; run 'hivemind ingest' once configured")
		return nil
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

	count, err := manual.NewIngester(store, embedder, logger).IngestDir(ctx, cfg.DocDir)
	if err != nil {
		return fmt.Errorf("build manual database: %w", err)
	}
	fmt.Fprintf(w, "  ✓ %s (%d chunks)\n", cfg.ManualDBPath(), count)
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never overwrites user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}
