// Package agent implements the reasoning loop that answers hive
// questions by alternating model calls with tool execution.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apiaryworks/hivemind/internal/llm"
	"github.com/apiaryworks/hivemind/internal/prompts"
	"github.com/apiaryworks/hivemind/internal/tools"
)

const defaultMaxIterations = 8

// LoopBoundExceededError is returned when the model keeps requesting
// tools past the iteration bound. The caller decides how to present it;
// the loop never fabricates an answer from an unfinished exchange.
type LoopBoundExceededError struct {
	Iterations int
}

// Error implements the error interface.
func (e *LoopBoundExceededError) Error() string {
	return fmt.Sprintf("no final answer after %d iterations", e.Iterations)
}

// Result is the outcome of one answered question.
type Result struct {
	Content      string
	Model        string
	Iterations   int
	InputTokens  int
	OutputTokens int
	ToolsCalled  []string
}

// Loop drives the question-answer cycle: the model either answers or
// requests tools, tool results are appended to the transcript, and the
// model is called again until it produces a final text answer.
type Loop struct {
	logger  *slog.Logger
	llm     llm.Client
	tools   *tools.Registry
	model   string
	maxIter int
}

// New creates an agent loop. maxIter <= 0 selects the default bound.
func New(logger *slog.Logger, client llm.Client, registry *tools.Registry, model string, maxIter int) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	return &Loop{
		logger:  logger,
		llm:     client,
		tools:   registry,
		model:   model,
		maxIter: maxIter,
	}
}

// Run answers a single question. history carries prior turns of the
// conversation (without the system prompt); pass nil for a one-shot
// question.
func (l *Loop) Run(ctx context.Context, question string, history []llm.Message) (*Result, error) {
	runID, _ := uuid.NewV7()
	rid := runID.String()

	toolDefs := l.tools.List()

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: prompts.AgentSystem})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: question})

	l.logger.Info("agent run started",
		"run_id", rid,
		"model", l.model,
		"question", truncate(question, 200),
		"tools_available", len(toolDefs),
	)

	startTime := time.Now()
	var totalInput, totalOutput int
	var toolsCalled []string

	for i := range l.maxIter {
		// Check context cancellation at iteration boundary.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent run cancelled: %w", err)
		}

		iterStart := time.Now()

		resp, err := l.llm.Chat(ctx, l.model, messages, toolDefs)
		if err != nil {
			return nil, fmt.Errorf("llm call failed (iter %d): %w", i, err)
		}

		totalInput += resp.InputTokens
		totalOutput += resp.OutputTokens

		l.logger.Debug("agent llm response",
			"run_id", rid,
			"iter", i,
			"tool_calls", len(resp.Message.ToolCalls),
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
			"elapsed", time.Since(iterStart).Round(time.Millisecond),
		)

		// No tool calls means we have the final answer.
		if len(resp.Message.ToolCalls) == 0 {
			l.logger.Info("agent run completed",
				"run_id", rid,
				"iterations", i+1,
				"input_tokens", totalInput,
				"output_tokens", totalOutput,
				"tools_called", len(toolsCalled),
				"elapsed", time.Since(startTime).Round(time.Millisecond),
			)
			return &Result{
				Content:      resp.Message.Content,
				Model:        l.model,
				Iterations:   i + 1,
				InputTokens:  totalInput,
				OutputTokens: totalOutput,
				ToolsCalled:  toolsCalled,
			}, nil
		}

		// Execute the requested tools in order and append each result
		// before the next model call.
		messages = append(messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			toolStart := time.Now()
			toolsCalled = append(toolsCalled, tc.Function.Name)

			l.logger.Info("agent tool exec",
				"run_id", rid,
				"iter", i,
				"tool", tc.Function.Name,
			)

			result, err := l.tools.Execute(ctx, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				result = "Error: " + err.Error()
				l.logger.Error("agent tool exec failed",
					"run_id", rid,
					"tool", tc.Function.Name,
					"error", err,
				)
			} else {
				l.logger.Debug("agent tool exec done",
					"run_id", rid,
					"tool", tc.Function.Name,
					"result_len", len(result),
					"elapsed", time.Since(toolStart).Round(time.Millisecond),
				)
			}

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	l.logger.Warn("agent iteration bound reached",
		"run_id", rid,
		"max_iter", l.maxIter,
		"tools_called", len(toolsCalled),
	)
	return nil, &LoopBoundExceededError{Iterations: l.maxIter}
}

// truncate shortens a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
