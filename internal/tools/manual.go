package tools

import (
	"context"
	"os"
	"strings"
)

const manualSearchK = 3

// Retrieval problems are reported to the model as tool result text
// rather than as errors: the agent can explain a missing or failing
// manual to the user, which beats aborting the whole question.

func (r *Registry) handleSearchBeeManual(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)

	if r.manualPath != "" {
		if _, err := os.Stat(r.manualPath); err != nil {
			return "Error: Vector database not initialized. (Run 'hivemind init' first.)", nil
		}
	}
	if r.manual == nil || r.embedder == nil {
		return "Error: Vector database not initialized. (Run 'hivemind init' first.)", nil
	}

	r.logger.Debug("manual search", "query", query)

	chunks, err := r.manual.Search(ctx, r.embedder, query, manualSearchK)
	if err != nil {
		return "Error querying Vector DB: " + err.Error(), nil
	}

	if len(chunks) == 0 {
		return "No relevant info found in the Bee Manual.", nil
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	return "From Bee Manual:\n" + strings.Join(contents, "\n---\n"), nil
}
