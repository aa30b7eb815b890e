package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apiaryworks/hivemind/internal/agent"
	"github.com/apiaryworks/hivemind/internal/llm"
)

// loopBoundMessage is shown when the model keeps requesting tools past
// the iteration bound instead of answering.
const loopBoundMessage = "The agent could not reach a final answer within its iteration limit. Try a more specific question."

// runAsk handles the "hivemind ask <question>" subcommand: one
// question, one answer, no session state.
func runAsk(ctx context.Context, stdout io.Writer, configPath, question string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configLogger(stdout, cfg)
	logger.Info("config loaded", "path", cfgPath)

	loop, cleanup, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := loop.Run(ctx, question, nil)
	if err != nil {
		var bound *agent.LoopBoundExceededError
		if errors.As(err, &bound) {
			return fmt.Errorf("%s", loopBoundMessage)
		}
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, result.Content)
	return nil
}

// runChat handles the "hivemind chat" subcommand: a line-based REPL
// that carries conversation history across questions.
func runChat(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configLogger(stdout, cfg)
	logger.Info("config loaded", "path", cfgPath)

	loop, cleanup, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintln(stdout, "Hivemind chat. Ask about your hive; 'exit' or Ctrl-D to quit.")

	var history []llm.Message
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		result, err := loop.Run(ctx, question, history)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var bound *agent.LoopBoundExceededError
			if errors.As(err, &bound) {
				fmt.Fprintln(stdout, loopBoundMessage)
			} else {
				fmt.Fprintf(stdout, "error: %v\n", err)
			}
			continue
		}

		fmt.Fprintln(stdout, result.Content)

		// Only settled turns enter the history; failed runs leave no
		// partial transcript behind.
		history = append(history,
			llm.Message{Role: "user", Content: question},
			llm.Message{Role: "assistant", Content: result.Content},
		)
	}
}
