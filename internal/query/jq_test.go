package query

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/wfscript/pkg/schema"
)

func sampleWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID:   "wf-1",
		Name: "Sync",
		Nodes: []schema.Node{
			{ID: "a", Name: "Start", Type: "n8n-nodes-base.manualTrigger", TypeVersion: 1, Parameters: map[string]any{}},
			{ID: "b", Name: "Fetch", Type: "n8n-nodes-base.httpRequest", TypeVersion: 4.2, Position: [2]float64{470, 300},
				Parameters: map[string]any{"url": "https://example.com"}},
		},
		Connections: map[string]schema.NodeOutputs{
			"Start": {schema.ConnectionMain: {{{Node: "Fetch", Type: schema.ConnectionMain, Index: 0}}}},
		},
	}
}

func TestJQEngine_Name(t *testing.T) {
	assert.Equal(t, "jq", NewJQEngine().Name())
}

func TestJQ_SelectField(t *testing.T) {
	e := NewJQEngine()
	out, err := e.Evaluate(context.Background(), ".name", map[string]any{"name": "Sync"})
	require.NoError(t, err)
	assert.Equal(t, "Sync", out)
}

func TestJQ_MultipleOutputs(t *testing.T) {
	e := NewJQEngine()
	data := map[string]any{"items": []any{1, 2, 3}}

	out, err := e.Evaluate(context.Background(), ".items[]", data)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, out)

	none, err := e.Evaluate(context.Background(), "empty", data)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestJQ_OverWorkflow(t *testing.T) {
	e := NewJQEngine()

	names, err := e.EvaluateAll(context.Background(), ".nodes[].name", sampleWorkflow())
	require.NoError(t, err)
	assert.Equal(t, []any{"Start", "Fetch"}, names)

	targets, err := e.EvaluateAll(context.Background(), `.connections.Start.main[0][].node`, sampleWorkflow())
	require.NoError(t, err)
	assert.Equal(t, []any{"Fetch"}, targets)

	x, err := e.EvaluateAll(context.Background(), `.nodes[1].position[0]`, sampleWorkflow())
	require.NoError(t, err)
	assert.Equal(t, []any{470.0}, x)
}

func TestJQ_EnvironmentIsEmpty(t *testing.T) {
	t.Setenv("WFSCRIPT_SECRET", "hunter2")
	e := NewJQEngine()
	out, err := e.Evaluate(context.Background(), "$ENV.WFSCRIPT_SECRET", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestJQ_Errors(t *testing.T) {
	e := NewJQEngine()
	ctx := context.Background()

	_, err := e.Evaluate(ctx, "", nil)
	assert.ErrorIs(t, err, &schema.Error{Code: schema.ErrCodeValidation})

	_, err = e.Evaluate(ctx, ".[", nil)
	assert.ErrorIs(t, err, &schema.Error{Code: schema.ErrCodeValidation})

	_, err = e.Evaluate(ctx, `error("boom")`, map[string]any{})
	assert.ErrorIs(t, err, schema.ErrEvaluation)
	assert.Contains(t, err.Error(), "boom")
}

func TestJQ_CancelledContext(t *testing.T) {
	e := NewJQEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Evaluate(ctx, "[range(1e9)] | length", map[string]any{})
	assert.ErrorIs(t, err, schema.ErrEvaluation)
}

func TestJQ_ConcurrentCache(t *testing.T) {
	e := NewJQEngine()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), ".n + 1", map[string]any{"n": 1})
			assert.NoError(t, err)
			assert.Equal(t, 2.0, out)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, e.programs.len())
}
