// Hivemind is a question-answering agent for beehive monitoring.
//
// It combines live hive sensor readings (SQLite) with a semantically
// searchable Bee Manual (embedded document chunks) behind a tool-using
// LLM loop. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	hivemind init [dir]      Initialize a working directory and seed demo data
//	hivemind ask <question>  Ask a single question
//	hivemind chat            Interactive question session
//	hivemind ingest [dir]    Build the Bee Manual database from documents
//	hivemind feed            Consume live sensor readings from MQTT
//	hivemind version         Print version and build information
//	hivemind -o json version Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/apiaryworks/hivemind/internal/agent"
	"github.com/apiaryworks/hivemind/internal/buildinfo"
	"github.com/apiaryworks/hivemind/internal/config"
	"github.com/apiaryworks/hivemind/internal/embeddings"
	"github.com/apiaryworks/hivemind/internal/llm"
	"github.com/apiaryworks/hivemind/internal/manual"
	"github.com/apiaryworks/hivemind/internal/readings"
	"github.com/apiaryworks/hivemind/internal/tools"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full lifecycle can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the hivemind command. All OS-level
// dependencies are injected as parameters; run returns nil on clean
// shutdown and a non-nil error for any failure.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// Parse arguments by hand. The flag package relies on package-level
	// globals (flag.CommandLine), which makes it impossible to call run()
	// concurrently from tests. Our argument surface is small enough that
	// manual parsing is clearer than bringing in a CLI framework.
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(ctx, stdout, configPath, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: hivemind ask <question>")
		}
		return runAsk(ctx, stdout, configPath, strings.Join(cmdArgs, " "))
	case "chat":
		return runChat(ctx, stdout, configPath)
	case "ingest":
		dir := ""
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runIngest(ctx, stdout, configPath, dir)
	case "feed":
		return runFeed(ctx, stdout, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Hivemind - Beehive Monitoring Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: hivemind [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [dir]    Initialize working directory and seed demo sensor data")
	fmt.Fprintln(w, "  ask           Ask a single question")
	fmt.Fprintln(w, "  chat          Interactive question session")
	fmt.Fprintln(w, "  ingest [dir]  Build the Bee Manual database from markdown/PDF documents")
	fmt.Fprintln(w, "  feed          Consume live sensor readings from MQTT")
	fmt.Fprintln(w, "  version       Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/hivemind/config.yaml, /etc/hivemind/config.yaml")
	return nil
}

// newLogger builds the process logger with custom level names (TRACE)
// mapped for display.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// configLogger reconfigures the logger once the configured level is
// known. Falls back to info on an empty or unparseable level.
func configLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		if parsed, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	return newLogger(w, level)
}

// buildAgent assembles the full question-answering stack from config:
// stores, embedding client, tool registry, LLM client, and loop. The
// returned cleanup function closes the stores.
func buildAgent(cfg *config.Config, logger *slog.Logger) (*agent.Loop, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	readingStore, err := readings.NewStore(cfg.SensorDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open sensor database: %w", err)
	}

	// The manual store is only opened when the database file already
	// exists; the search tool reports an uninitialized manual otherwise.
	var manualStore *manual.Store
	if _, statErr := os.Stat(cfg.ManualDBPath()); statErr == nil {
		manualStore, err = manual.NewStore(cfg.ManualDBPath())
		if err != nil {
			readingStore.Close()
			return nil, nil, fmt.Errorf("open manual database: %w", err)
		}
	}

	embedder := embeddings.New(embeddings.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.Embeddings.Model,
	})

	registry := tools.NewRegistry(readingStore, manualStore, embedder, cfg.ManualDBPath(), logger)
	client := llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, logger)
	loop := agent.New(logger, client, registry, cfg.OpenAI.Model, cfg.Agent.MaxIterations)

	cleanup := func() {
		readingStore.Close()
		if manualStore != nil {
			manualStore.Close()
		}
	}
	return loop, cleanup, nil
}
