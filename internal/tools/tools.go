// Package tools defines the tools available to the agent.
package tools

import (
	"context"
	"log/slog"
	"sort"

	"github.com/apiaryworks/hivemind/internal/manual"
	"github.com/apiaryworks/hivemind/internal/readings"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string                                                         `json:"name"`
	Description string                                                         `json:"description"`
	Parameters  map[string]any                                                 `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools.
type Registry struct {
	tools      map[string]*Tool
	readings   *readings.Store
	manual     *manual.Store
	embedder   manual.Embedder
	manualPath string
	logger     *slog.Logger
}

// NewRegistry creates a tool registry backed by the sensor store and the
// manual store. manualPath is the manual database file on disk; when it
// does not exist the search tool reports that the manual has not been
// initialized. An empty manualPath skips the file check (used by tests
// running against in-memory stores).
func NewRegistry(rs *readings.Store, ms *manual.Store, embedder manual.Embedder, manualPath string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:      make(map[string]*Tool),
		readings:   rs,
		manual:     ms,
		embedder:   embedder,
		manualPath: manualPath,
		logger:     logger,
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        "get_hive_data",
		Description: "Get the latest sensor readings from the beehive. Returns the most recent reading from each sensor. Mention temperature, humidity, or weight in the query to restrict results to that measurement.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The question about hive sensor data (e.g., 'current temperature', 'hive weight')",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handleGetHiveData,
	})

	r.Register(&Tool{
		Name:        "search_bee_manual",
		Description: "Search the Bee Manual for beekeeping knowledge: ideal conditions, hive management, diseases, swarming, feeding. Use for questions about what values mean or what to do, not for current readings.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The topic or question to look up in the manual",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handleSearchBeeManual,
	})
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// List returns all tools in the JSON-schema form the LLM expects,
// sorted by name so the model sees a stable order across calls.
func (r *Registry) List() []map[string]any {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name with given arguments.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	return tool.Handler(ctx, args)
}
