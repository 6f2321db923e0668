package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/wfscript/internal/builders"
	"github.com/rendis/wfscript/internal/diagram"
	"github.com/rendis/wfscript/internal/logging"
	"github.com/rendis/wfscript/pkg/interpreter"
	"github.com/rendis/wfscript/pkg/schema"
)

// handleInterpret runs a script and returns its export, optionally projected
// through jq.
func (s *Server) handleInterpret(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}
	q := req.GetString("query", "")

	ctx, cancel := s.callContext(ctx, "wfscript.interpret")
	defer cancel()

	result, runErr := interpreter.InterpretContext(ctx, code, builders.Functions(), s.options...)
	if runErr != nil {
		return errorResult(runErr), nil
	}
	exported, exportErr := builders.Export(result)
	if exportErr != nil {
		return errorResult(exportErr), nil
	}
	if q == "" {
		return marshalResult(exported)
	}

	outputs, qErr := s.jq.EvaluateAll(ctx, q, exported)
	if qErr != nil {
		return errorResult(qErr), nil
	}
	if len(outputs) == 1 {
		return marshalResult(outputs[0])
	}
	return marshalResult(outputs)
}

// handleValidate runs a script and validates the workflow it exports.
func (s *Server) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}

	ctx, cancel := s.callContext(ctx, "wfscript.validate")
	defer cancel()

	wf, wfErr := s.workflow(ctx, code)
	if wfErr != nil {
		return errorResult(wfErr), nil
	}
	result := s.validator.Validate(ctx, wf)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   nonNil(result.Errors),
		"warnings": nonNil(result.Warnings),
	})
}

// handleReservedNames reports the policy tables code generators must respect.
func (s *Server) handleReservedNames(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(s.policy.ReservedNames())
}

// handleDiagram renders the workflow a script exports.
func (s *Server) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	ctx, cancel := s.callContext(ctx, "wfscript.diagram")
	defer cancel()

	wf, wfErr := s.workflow(ctx, code)
	if wfErr != nil {
		return errorResult(wfErr), nil
	}
	model, buildErr := diagram.Build(wf)
	if buildErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", buildErr)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model, diagram.ImagePNG)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		encoded := base64.StdEncoding.EncodeToString(png)
		return mcp.NewToolResultImage(model.Title, encoded, "image/png"), nil
	}
}

// workflow interprets code and requires a workflow builder export.
func (s *Server) workflow(ctx context.Context, code string) (*schema.Workflow, error) {
	result, err := interpreter.InterpretContext(ctx, code, builders.Functions(), s.options...)
	if err != nil {
		return nil, err
	}
	return builders.ExportWorkflow(result)
}

// callContext tags ctx with a fresh interpretation id and applies the
// per-call timeout.
func (s *Server) callContext(ctx context.Context, tool string) (context.Context, context.CancelFunc) {
	ctx = logging.WithIDs(ctx, uuid.NewString(), tool)
	s.logger.DebugContext(ctx, "tool call")
	return context.WithTimeout(ctx, s.timeout)
}

// errorResult renders err as a JSON tool error: {"code","message","location","details"}.
func errorResult(err error) *mcp.CallToolResult {
	var serr *schema.Error
	if !errors.As(err, &serr) {
		serr = schema.NewError(schema.ErrCodeEvaluation, err.Error())
	}
	data, mErr := json.Marshal(serr)
	if mErr != nil {
		return mcp.NewToolResultError(serr.Error())
	}
	return mcp.NewToolResultError(string(data))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

func nonNil(issues []schema.ValidationIssue) []schema.ValidationIssue {
	if issues == nil {
		return []schema.ValidationIssue{}
	}
	return issues
}
