// Package store persists saved workflow scripts together with their exported
// workflow JSON and an append-only revision history.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rendis/wfscript/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// SaveWorkflow inserts or updates wf by ID. A new revision is recorded
	// only when the source changed; changed reports whether it was.
	SaveWorkflow(ctx context.Context, wf *SavedWorkflow) (changed bool, err error)
	GetWorkflow(ctx context.Context, id string) (*SavedWorkflow, error)
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*SavedWorkflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	ListRevisions(ctx context.Context, workflowID string) ([]*Revision, error)
	GetRevision(ctx context.Context, workflowID string, revision int) (*Revision, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}

// SavedWorkflow is the latest revision of a script.
type SavedWorkflow struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Source     string          `json:"source,omitempty"`
	Definition json.RawMessage `json:"definition,omitempty"`
	Hash       string          `json:"hash"`
	Revision   int             `json:"revision"`
	NodeCount  int             `json:"node_count"`
	Warnings   int             `json:"warnings"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Revision is one entry of a workflow's history.
type Revision struct {
	WorkflowID string          `json:"workflow_id"`
	Revision   int             `json:"revision"`
	Hash       string          `json:"hash"`
	Source     string          `json:"source"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  time.Time       `json:"created_at"`
}

// WorkflowFilter narrows ListWorkflows. Zero values match everything.
type WorkflowFilter struct {
	NameContains string
	Limit        int
	Offset       int
}

// HashSource returns the content hash used to detect source changes.
// Definitions are not hashed: node ids are generated on every run.
func HashSource(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// NewSavedWorkflow prepares an exported workflow for SaveWorkflow. The
// workflow id is the key, so scripts must set one.
func NewSavedWorkflow(src string, wf *schema.Workflow, warnings int) (*SavedWorkflow, error) {
	if wf == nil || wf.ID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow needs a non-empty id to be saved")
	}
	def, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow %q: %w", wf.ID, err)
	}
	return &SavedWorkflow{
		ID:         wf.ID,
		Name:       wf.Name,
		Source:     src,
		Definition: def,
		Hash:       HashSource(src),
		NodeCount:  len(wf.Nodes),
		Warnings:   warnings,
	}, nil
}
