package validation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/wfscript/pkg/schema"
)

func validWorkflow() *schema.Workflow {
	wf := newWorkflow(node("Start", manualTrigger), node("Fetch", httpRequest))
	wf.Nodes[1].Parameters = map[string]any{"url": "https://example.com"}
	mainLink(wf, "Start", "Fetch")
	return wf
}

func TestValidator_Valid(t *testing.T) {
	v, err := NewValidator(nil)
	require.NoError(t, err)

	result := v.Validate(context.Background(), validWorkflow())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
	assert.NoError(t, v.ValidateWorkflow(context.Background(), validWorkflow()))
}

func TestValidator_Nil(t *testing.T) {
	v, err := NewValidator(nil)
	require.NoError(t, err)

	result := v.Validate(context.Background(), nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nil")
}

func TestValidator_StructuralShortCircuits(t *testing.T) {
	v, err := NewValidator(nil)
	require.NoError(t, err)

	wf := validWorkflow()
	wf.Nodes[1].Type = "fetch"
	mainLink(wf, "Fetch", "Nowhere") // semantic error never reported

	result := v.Validate(context.Background(), wf)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "nodes[1].type", result.Errors[0].Path)
}

func TestValidator_SemanticErrorsSkipDAG(t *testing.T) {
	v, err := NewValidator(nil)
	require.NoError(t, err)

	wf := validWorkflow()
	mainLink(wf, "Fetch", "Nowhere")
	mainLink(wf, "Fetch", "Fetch")

	result := v.Validate(context.Background(), wf)
	assert.Equal(t, []string{schema.ErrCodeNotFound}, codes(result.Errors))
}

func TestValidator_CycleDetected(t *testing.T) {
	v, err := NewValidator(nil)
	require.NoError(t, err)

	wf := validWorkflow()
	mainLink(wf, "Fetch", "Fetch")

	err = v.ValidateWorkflow(context.Background(), wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, &schema.Error{Code: schema.ErrCodeValidation})
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidator_WarningsPassThrough(t *testing.T) {
	v, err := NewValidator(nil)
	require.NoError(t, err)

	wf := validWorkflow()
	wf.Nodes = append(wf.Nodes, node("Orphan", setNode))

	result := v.Validate(context.Background(), wf)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "Orphan")
}

func TestValidator_Rules(t *testing.T) {
	v, err := NewValidator([]string{
		`size(workflow.nodes) <= 2`,
		`workflow.nodes.all(n, n.type != "n8n-nodes-base.executeCommand")`,
		`workflow.nodes.filter(n, n.type == "n8n-nodes-base.httpRequest").all(n, n.parameters.url.startsWith("https://"))`,
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, v.Validate(ctx, validWorkflow()).Valid())

	wf := validWorkflow()
	wf.Nodes[1].Parameters["url"] = "http://example.com"
	wf.Nodes = append(wf.Nodes, node("Shell", "n8n-nodes-base.executeCommand"))
	mainLink(wf, "Fetch", "Shell")

	result := v.Validate(ctx, wf)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, []string{schema.ErrCodeRuleViolation, schema.ErrCodeRuleViolation, schema.ErrCodeRuleViolation}, codes(result.Errors))
	assert.Equal(t, "rules[0]", result.Errors[0].Path)
	assert.Contains(t, result.Errors[1].Message, "executeCommand")
}

func TestValidator_RuleMustBeBoolean(t *testing.T) {
	v, err := NewValidator([]string{`workflow.name`})
	require.NoError(t, err)

	result := v.Validate(context.Background(), validWorkflow())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "boolean")
}

func TestValidator_RuleEvaluationError(t *testing.T) {
	v, err := NewValidator([]string{`workflow.settings.timezone == "UTC"`})
	require.NoError(t, err)

	result := v.Validate(context.Background(), validWorkflow())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeRuleViolation, result.Errors[0].Code)
}

func TestValidator_BadRuleFailsFast(t *testing.T) {
	_, err := NewValidator([]string{`size(workflow.nodes) <=`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CEL compile error")
}

func TestValidator_ParameterSchema(t *testing.T) {
	v, err := NewValidator(nil, WithParameterSchema(httpRequest,
		[]byte(`{"type": "object", "required": ["url"], "properties": {"url": {"type": "string"}}}`)))
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, v.Validate(ctx, validWorkflow()).Valid())

	wf := validWorkflow()
	wf.Nodes[1].Parameters = map[string]any{"method": "GET"}
	result := v.Validate(ctx, wf)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "nodes[1].parameters", result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Message, "url")
}

func TestValidator_Concurrent(t *testing.T) {
	v, err := NewValidator([]string{`size(workflow.nodes) > 0`})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, v.Validate(context.Background(), validWorkflow()).Valid())
		}()
	}
	wg.Wait()
}
