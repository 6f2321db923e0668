package query

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rendis/wfscript/pkg/schema"
)

// celInterruptEvery is how many comprehension iterations run between checks
// of the evaluation context.
const celInterruptEvery = 100

// CELEngine evaluates admission predicates over an exported workflow. The
// environment declares a single variable, workflow, holding the workflow as
// JSON (name, nodes, connections, settings). Safe for concurrent use.
type CELEngine struct {
	env      *cel.Env
	programs *programCache[cel.Program]
}

func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("workflow", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}
	e := &CELEngine{env: env}
	e.programs = newProgramCache("CEL", e.build)
	return e, nil
}

func (e *CELEngine) Name() string { return "cel" }

// Compile type-checks a rule without running it. The program is kept for
// later evaluations.
func (e *CELEngine) Compile(expression string) error {
	_, err := e.programs.get(expression)
	return err
}

// Evaluate runs a rule with data["workflow"] bound to the workflow variable.
// A missing or non-object workflow is bound as an empty map.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	prg, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}
	wf, ok := Normalize(data["workflow"]).(map[string]any)
	if !ok {
		wf = map[string]any{}
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{"workflow": wf})
	if err != nil {
		return nil, exprError(schema.ErrCodeEvaluation, "CEL", "evaluation failed for", expression, err)
	}
	return out.Value(), nil
}

func (e *CELEngine) build(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if err := issues.Err(); err != nil {
		return nil, exprError(schema.ErrCodeValidation, "CEL", "compile error in", expression, err)
	}
	prg, err := e.env.Program(ast, cel.InterruptCheckFrequency(celInterruptEvery))
	if err != nil {
		return nil, exprError(schema.ErrCodeValidation, "CEL", "program error for", expression, err)
	}
	return prg, nil
}

var _ Engine = (*CELEngine)(nil)
