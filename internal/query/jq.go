package query

import (
	"context"

	"github.com/itchyny/gojq"

	"github.com/rendis/wfscript/pkg/schema"
)

// JQEngine runs jq projections over exported workflows. Programs cannot read
// the process environment. Safe for concurrent use.
type JQEngine struct {
	programs *programCache[*gojq.Code]
}

func NewJQEngine() *JQEngine {
	return &JQEngine{programs: newProgramCache("jq", compileJQ)}
}

func (e *JQEngine) Name() string { return "jq" }

// Evaluate collapses the program's outputs: none is nil, one is returned
// as is, several come back as []any.
func (e *JQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	outputs, err := e.EvaluateAll(ctx, expression, data)
	if err != nil {
		return nil, err
	}
	switch len(outputs) {
	case 0:
		return nil, nil
	case 1:
		return outputs[0], nil
	}
	return outputs, nil
}

// EvaluateAll returns every value the program emits for data.
func (e *JQEngine) EvaluateAll(ctx context.Context, expression string, data any) ([]any, error) {
	code, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}

	var outputs []any
	iter := code.RunWithContext(ctx, Normalize(data))
	for v, ok := iter.Next(); ok; v, ok = iter.Next() {
		if err, isErr := v.(error); isErr {
			return nil, exprError(schema.ErrCodeEvaluation, "jq", "evaluation failed for", expression, err)
		}
		outputs = append(outputs, v)
	}
	return outputs, nil
}

func compileJQ(expression string) (*gojq.Code, error) {
	q, err := gojq.Parse(expression)
	if err != nil {
		return nil, exprError(schema.ErrCodeValidation, "jq", "parse error in", expression, err)
	}
	code, err := gojq.Compile(q, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, exprError(schema.ErrCodeValidation, "jq", "compile error in", expression, err)
	}
	return code, nil
}

var _ Engine = (*JQEngine)(nil)
