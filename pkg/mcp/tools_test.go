package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/wfscript/internal/validation"
	"github.com/rendis/wfscript/pkg/interpreter"
	"github.com/rendis/wfscript/pkg/schema"
)

const linearScript = `
const start = trigger({type: "n8n-nodes-base.manualTrigger", config: {name: "Start"}});
const fetch = node({type: "n8n-nodes-base.httpRequest", version: 4.2, config: {
  name: "Fetch",
  parameters: {url: "http://example.com"},
}});
export default workflow("wf-1", "Linear").add(start).then(fetch);
`

// --- Helpers ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	s, err := NewServer(deps)
	require.NoError(t, err)
	return s
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "first content is %T", result.Content[0])
	return text.Text
}

func decodeError(t *testing.T, result *mcp.CallToolResult) schema.Error {
	t.Helper()
	require.True(t, result.IsError)
	var e schema.Error
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &e))
	return e
}

// --- wfscript.interpret ---

func TestInterpretTool(t *testing.T) {
	s := newTestServer(t, Deps{})

	result, err := s.handleInterpret(context.Background(), buildRequest("wfscript.interpret", map[string]any{
		"code": linearScript,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var wf schema.Workflow
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &wf))
	assert.Equal(t, "Linear", wf.Name)
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "Fetch", wf.Connections["Start"][schema.ConnectionMain][0][0].Node)
}

func TestInterpretTool_PlainValue(t *testing.T) {
	s := newTestServer(t, Deps{})

	result, err := s.handleInterpret(context.Background(), buildRequest("wfscript.interpret", map[string]any{
		"code": `export default {a: 1, b: [true, "x"]};`,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"a": 1, "b": [true, "x"]}`, resultText(t, result))
}

func TestInterpretTool_Query(t *testing.T) {
	s := newTestServer(t, Deps{})

	result, err := s.handleInterpret(context.Background(), buildRequest("wfscript.interpret", map[string]any{
		"code":  linearScript,
		"query": "[.nodes[].name]",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `["Start", "Fetch"]`, resultText(t, result))

	result, err = s.handleInterpret(context.Background(), buildRequest("wfscript.interpret", map[string]any{
		"code":  linearScript,
		"query": ".nodes[].type",
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `["n8n-nodes-base.manualTrigger", "n8n-nodes-base.httpRequest"]`, resultText(t, result))
}

func TestInterpretTool_Errors(t *testing.T) {
	s := newTestServer(t, Deps{})
	ctx := context.Background()

	tests := []struct {
		name string
		code string
		want string
	}{
		{"syntax", `export default (;`, schema.ErrCodeSyntax},
		{"security", `export default eval("1");`, schema.ErrCodeSecurity},
		{"unknown identifier", `export default missing;`, schema.ErrCodeUnknownIdentifier},
		{"capability", `export default workflow(1);`, schema.ErrCodeCapability},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := s.handleInterpret(ctx, buildRequest("wfscript.interpret", map[string]any{"code": tc.code}))
			require.NoError(t, err)
			assert.Equal(t, tc.want, decodeError(t, result).Code)
		})
	}

	t.Run("bad query", func(t *testing.T) {
		result, err := s.handleInterpret(ctx, buildRequest("wfscript.interpret", map[string]any{
			"code":  linearScript,
			"query": ".[",
		}))
		require.NoError(t, err)
		assert.Equal(t, schema.ErrCodeValidation, decodeError(t, result).Code)
	})

	t.Run("missing code", func(t *testing.T) {
		result, err := s.handleInterpret(ctx, buildRequest("wfscript.interpret", map[string]any{}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestInterpretTool_StepLimit(t *testing.T) {
	s := newTestServer(t, Deps{Options: []interpreter.Option{interpreter.WithMaxSteps(5)}})

	result, err := s.handleInterpret(context.Background(), buildRequest("wfscript.interpret", map[string]any{
		"code": linearScript,
	}))
	require.NoError(t, err)
	assert.Equal(t, schema.ErrCodeLimitExceeded, decodeError(t, result).Code)
}

// --- wfscript.validate ---

func TestValidateTool(t *testing.T) {
	s := newTestServer(t, Deps{})

	result, err := s.handleValidate(context.Background(), buildRequest("wfscript.validate", map[string]any{
		"code": linearScript,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"valid": true, "errors": [], "warnings": []}`, resultText(t, result))
}

func TestValidateTool_Rules(t *testing.T) {
	v, err := validation.NewValidator([]string{
		`workflow.nodes.all(n, !has(n.parameters.url) || n.parameters.url.startsWith("https://"))`,
	})
	require.NoError(t, err)
	s := newTestServer(t, Deps{Validator: v})

	result, err := s.handleValidate(context.Background(), buildRequest("wfscript.validate", map[string]any{
		"code": linearScript,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Valid  bool                     `json:"valid"`
		Errors []schema.ValidationIssue `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.False(t, out.Valid)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, schema.ErrCodeRuleViolation, out.Errors[0].Code)
}

func TestValidateTool_RequiresWorkflow(t *testing.T) {
	s := newTestServer(t, Deps{})

	result, err := s.handleValidate(context.Background(), buildRequest("wfscript.validate", map[string]any{
		"code": `export default 42;`,
	}))
	require.NoError(t, err)
	e := decodeError(t, result)
	assert.Equal(t, schema.ErrCodeValidation, e.Code)
	assert.Contains(t, e.Message, "workflow builder")
}

// --- wfscript.reserved_names ---

func TestReservedNamesTool(t *testing.T) {
	s := newTestServer(t, Deps{})

	result, err := s.handleReservedNames(context.Background(), buildRequest("wfscript.reserved_names", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var names struct {
		Core             []string            `json:"core"`
		DangerousGlobals []string            `json:"dangerous_globals"`
		Methods          map[string][]string `json:"methods"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &names))
	assert.Equal(t, []string{"node", "trigger", "workflow"}, names.Core)
	assert.Contains(t, names.DangerousGlobals, "eval")
	assert.Contains(t, names.Methods["workflow-builder"], "add")
}

// --- wfscript.diagram ---

func TestDiagramTool_Text(t *testing.T) {
	s := newTestServer(t, Deps{})
	ctx := context.Background()

	result, err := s.handleDiagram(ctx, buildRequest("wfscript.diagram", map[string]any{
		"code": linearScript, "format": "mermaid",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "graph LR")
	assert.Contains(t, text, "n0 --> n1")

	result, err = s.handleDiagram(ctx, buildRequest("wfscript.diagram", map[string]any{
		"code": linearScript, "format": "ascii",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Start ─→ Fetch")
}

func TestDiagramTool_Image(t *testing.T) {
	s := newTestServer(t, Deps{})

	result, err := s.handleDiagram(context.Background(), buildRequest("wfscript.diagram", map[string]any{
		"code": linearScript, "format": "image",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 2)

	img, ok := result.Content[1].(mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MIMEType)
	data, err := base64.StdEncoding.DecodeString(img.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestDiagramTool_BadFormat(t *testing.T) {
	s := newTestServer(t, Deps{})

	result, err := s.handleDiagram(context.Background(), buildRequest("wfscript.diagram", map[string]any{
		"code": linearScript, "format": "svg",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
