package validation

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/wfscript/pkg/schema"
)

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v.workflow)
}

func TestValidateWorkflow_Nil(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateWorkflow(nil)
	require.Error(t, err)
	serr, ok := err.(*schema.Error)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, serr.Code)
	assert.Contains(t, serr.Message, "nil")
}

func TestValidateWorkflow_Valid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	wf := newWorkflow(node("Start", manualTrigger), node("Fetch", httpRequest))
	wf.Nodes[1].Credentials = map[string]schema.CredentialRef{"httpBasicAuth": {ID: "1", Name: "Basic"}}
	wf.Nodes[1].OnError = "continueErrorOutput"
	mainLink(wf, "Start", "Fetch")
	link(wf, schema.ConnectionAITool, "Fetch", 0, "Start", 0)

	assert.NoError(t, v.ValidateWorkflow(wf))
}

func TestValidateWorkflow_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(wf *schema.Workflow)
		want   string
	}{
		{"empty name", func(wf *schema.Workflow) { wf.Name = "" }, "name"},
		{"bad node type", func(wf *schema.Workflow) { wf.Nodes[0].Type = "manualTrigger" }, "nodes[0].type"},
		{"zero version", func(wf *schema.Workflow) { wf.Nodes[0].TypeVersion = 0 }, "nodes[0].typeVersion"},
		{"empty id", func(wf *schema.Workflow) { wf.Nodes[0].ID = "" }, "nodes[0].id"},
		{"bad onError", func(wf *schema.Workflow) { wf.Nodes[0].OnError = "retry" }, "nodes[0].onError"},
		{"unnamed credential", func(wf *schema.Workflow) {
			wf.Nodes[0].Credentials = map[string]schema.CredentialRef{"api": {ID: "1"}}
		}, "nodes[0].credentials.api"},
		{"unknown connection type", func(wf *schema.Workflow) {
			link(wf, "error", "Start", 0, "Start", 0)
		}, "connections.Start"},
		{"negative index", func(wf *schema.Workflow) {
			link(wf, schema.ConnectionMain, "Start", 0, "Start", -1)
		}, "connections.Start.main[0][0].index"},
	}
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := newWorkflow(node("Start", manualTrigger))
			tt.mutate(wf)

			err := v.ValidateWorkflow(wf)
			require.Error(t, err)
			serr := err.(*schema.Error)
			violations, ok := serr.Details["violations"].([]Violation)
			require.True(t, ok)
			assert.True(t, slices.ContainsFunc(violations, func(v Violation) bool {
				return strings.HasPrefix(v.Path, tt.want)
			}), "no violation under %s in %v", tt.want, violations)
		})
	}
}

func TestValidateWorkflow_MultipleErrors(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	wf := newWorkflow(node("Start", "bad"), node("Other", "bad"))
	err = v.ValidateWorkflow(wf)
	require.Error(t, err)
	serr := err.(*schema.Error)
	assert.Equal(t, "2 schema violations", serr.Message)
	assert.Len(t, serr.Details["violations"], 2)
}

func TestValidateParameters(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	paramSchema := []byte(`{
		"type": "object",
		"required": ["url"],
		"properties": {
			"url": {"type": "string", "format": "uri"},
			"method": {"enum": ["GET", "POST"]},
			"timeout": {"type": "number", "minimum": 0}
		}
	}`)

	assert.NoError(t, v.ValidateParameters(map[string]any{"url": "https://example.com", "method": "GET"}, paramSchema))
	assert.NoError(t, v.ValidateParameters(nil, nil))

	err = v.ValidateParameters(map[string]any{"method": "PUT", "timeout": -1}, paramSchema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 schema violations")

	err = v.ValidateParameters(map[string]any{"url": "not a uri"}, paramSchema)
	assert.Error(t, err)
}

func TestDottedPath(t *testing.T) {
	assert.Equal(t, "", dottedPath(nil))
	assert.Equal(t, "nodes[2].parameters.rule.interval[0]",
		dottedPath([]string{"nodes", "2", "parameters", "rule", "interval", "0"}))
	assert.Equal(t, "connections.Start.main[0][1]", dottedPath([]string{"connections", "Start", "main", "0", "1"}))
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/", joinPath("", ""))
	assert.Equal(t, "nodes[1].parameters", joinPath("nodes[1].parameters", ""))
	assert.Equal(t, "nodes[1].parameters.url", joinPath("nodes[1].parameters", "url"))
	assert.Equal(t, "nodes[1].parameters[0]", joinPath("nodes[1].parameters", "[0]"))
	assert.Equal(t, "name", joinPath("", "name"))
}

func TestValidateParameters_InvalidSchema(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateParameters(map[string]any{}, []byte(`{"type": 12`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parameter schema")
}

func TestValidateParameters_CachesAndIsConcurrent(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	paramSchema := []byte(`{"type": "object", "required": ["content"]}`)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			params := map[string]any{"content": fmt.Sprint(i)}
			assert.NoError(t, v.ValidateParameters(params, paramSchema))
		}(i)
	}
	wg.Wait()
	assert.Len(t, v.params, 1)
}
