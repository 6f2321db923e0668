// Package query evaluates host-side expressions over exported workflows:
// jq projections for `wfscript run --query` and CEL admission rules for
// validation. Scripts never reach these engines.
package query

import "context"

// Engine evaluates an expression against a JSON-shaped document.
// Two implementations: JQ (projections) and CEL (predicates).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
