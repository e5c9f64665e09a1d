// Package agents holds the LLM roles of the pipeline: per-flair stock
// recommenders, the trade planner, the stock picker and the trade decision
// agent. Each agent owns its prompts and output schema and talks to the
// model through StructuredClient.
package agents

import (
	"context"

	"midas/internal/adapters/ai"
)

// StructuredClient produces schema-constrained model output. Satisfied by
// ai.Client.
type StructuredClient interface {
	Parse(ctx context.Context, system, user string, schema ai.Schema, out interface{}) error
}

const agenticBalancePrompt = `# Agentic Balance
- Proceed autonomously to generate your answer; do not stop to request clarification even if critical decision information is missing. Continue based on the best available data and your established criteria.`
