package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/wfscript/internal/store"
)

// handleSave stores a valid workflow script under its workflow id.
func (s *Server) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}

	ctx, cancel := s.callContext(ctx, "wfscript.save")
	defer cancel()

	wf, wfErr := s.workflow(ctx, code)
	if wfErr != nil {
		return errorResult(wfErr), nil
	}
	result := s.validator.Validate(ctx, wf)
	if !result.Valid() {
		return errorResult(result.ToError()), nil
	}

	rec, recErr := store.NewSavedWorkflow(code, wf, len(result.Warnings))
	if recErr != nil {
		return errorResult(recErr), nil
	}
	changed, saveErr := s.store.SaveWorkflow(ctx, rec)
	if saveErr != nil {
		return errorResult(saveErr), nil
	}
	s.logger.InfoContext(ctx, "workflow saved", "id", rec.ID, "revision", rec.Revision, "changed", changed)
	return marshalResult(map[string]any{
		"id":       rec.ID,
		"name":     rec.Name,
		"revision": rec.Revision,
		"changed":  changed,
		"warnings": nonNil(result.Warnings),
	})
}

// handleList returns saved workflow summaries.
func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.WorkflowFilter{
		NameContains: req.GetString("name", ""),
		Limit:        req.GetInt("limit", 0),
	}
	wfs, err := s.store.ListWorkflows(ctx, filter)
	if err != nil {
		return errorResult(err), nil
	}
	if wfs == nil {
		wfs = []*store.SavedWorkflow{}
	}
	return marshalResult(map[string]any{"workflows": wfs})
}

// handleGet returns a saved workflow, or one of its revisions.
func (s *Server) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	if rev := req.GetInt("revision", 0); rev > 0 {
		r, revErr := s.store.GetRevision(ctx, id, rev)
		if revErr != nil {
			return errorResult(revErr), nil
		}
		return marshalResult(r)
	}
	wf, getErr := s.store.GetWorkflow(ctx, id)
	if getErr != nil {
		return errorResult(getErr), nil
	}
	return marshalResult(wf)
}
