package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/wfscript/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

var _ Store = (*LibSQLStore)(nil)

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Workflows ---

func (s *LibSQLStore) SaveWorkflow(ctx context.Context, wf *SavedWorkflow) (bool, error) {
	if wf.ID == "" {
		return false, schema.NewError(schema.ErrCodeValidation, "saved workflow needs an id")
	}
	if len(wf.Definition) == 0 {
		return false, schema.NewErrorf(schema.ErrCodeValidation, "saved workflow %q has no definition", wf.ID)
	}
	if wf.Hash == "" {
		wf.Hash = HashSource(wf.Source)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		hash      string
		revision  int
		createdAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT hash, revision, created_at FROM workflows WHERE id = ?`, wf.ID,
	).Scan(&hash, &revision, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt = time.Now().UTC()
	case err != nil:
		return false, err
	case hash == wf.Hash:
		wf.Revision = revision
		wf.CreatedAt = createdAt
		return false, nil
	}

	now := time.Now().UTC()
	wf.Revision = revision + 1
	wf.CreatedAt = createdAt
	wf.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflows (id, name, source, definition, hash, revision, node_count, warnings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, source=excluded.source, definition=excluded.definition,
		   hash=excluded.hash, revision=excluded.revision, node_count=excluded.node_count,
		   warnings=excluded.warnings, updated_at=excluded.updated_at`,
		wf.ID, wf.Name, wf.Source, string(wf.Definition), wf.Hash, wf.Revision,
		wf.NodeCount, wf.Warnings, wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("save workflow %q: %w", wf.ID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflow_revisions (workflow_id, revision, hash, source, definition, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.Revision, wf.Hash, wf.Source, string(wf.Definition), now,
	)
	if err != nil {
		return false, fmt.Errorf("record revision %d of %q: %w", wf.Revision, wf.ID, err)
	}
	return true, tx.Commit()
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, id string) (*SavedWorkflow, error) {
	wf := &SavedWorkflow{}
	var def string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, source, definition, hash, revision, node_count, warnings, created_at, updated_at
		 FROM workflows WHERE id = ?`, id,
	).Scan(&wf.ID, &wf.Name, &wf.Source, &def, &wf.Hash, &wf.Revision,
		&wf.NodeCount, &wf.Warnings, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("workflow", id)
	}
	if err != nil {
		return nil, err
	}
	wf.Definition = json.RawMessage(def)
	return wf, nil
}

// ListWorkflows returns summaries ordered by name: Source and Definition are
// left empty.
func (s *LibSQLStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*SavedWorkflow, error) {
	query := `SELECT id, name, hash, revision, node_count, warnings, created_at, updated_at FROM workflows`
	var (
		where []string
		args  []any
	)
	if filter.NameContains != "" {
		where = append(where, "name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(filter.NameContains)+"%")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SavedWorkflow
	for rows.Next() {
		wf := &SavedWorkflow{}
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Hash, &wf.Revision,
			&wf.NodeCount, &wf.Warnings, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteWorkflow(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_revisions WHERE workflow_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "workflow", id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Revisions ---

func (s *LibSQLStore) ListRevisions(ctx context.Context, workflowID string) ([]*Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workflow_id, revision, hash, source, definition, created_at
		 FROM workflow_revisions WHERE workflow_id = ? ORDER BY revision`, workflowID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Revision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, storeNotFound("workflow", workflowID)
	}
	return out, nil
}

func (s *LibSQLStore) GetRevision(ctx context.Context, workflowID string, revision int) (*Revision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT workflow_id, revision, hash, source, definition, created_at
		 FROM workflow_revisions WHERE workflow_id = ? AND revision = ?`, workflowID, revision,
	)
	r, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("revision", fmt.Sprintf("%s@%d", workflowID, revision))
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRevision(sc scanner) (*Revision, error) {
	r := &Revision{}
	var def string
	if err := sc.Scan(&r.WorkflowID, &r.Revision, &r.Hash, &r.Source, &def, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Definition = json.RawMessage(def)
	return r, nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
