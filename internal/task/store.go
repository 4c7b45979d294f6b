package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/store"
)

// Store is the workspace-scoped persistence layer for Task (spec §4.1
// specialized to Task, analogous to trigger.Store for Trigger).
type Store struct {
	pool *store.Pool
}

// NewStore constructs a task Store bound to pool.
func NewStore(pool *store.Pool) *Store {
	return &Store{pool: pool}
}

type row struct {
	ID          string
	WorkspaceID string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AgentID     string
	Description string
	Parameters  []byte
	Status      string
	Result      []byte
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
	ExecutionID *string
	Metadata    []byte
}

func (r *row) toDomain() (*Task, error) {
	t := &Task{
		ID: r.ID, WorkspaceID: r.WorkspaceID, CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		AgentID: r.AgentID, Description: r.Description,
		Status: Status(r.Status), Error: r.Error,
		StartedAt: r.StartedAt, CompletedAt: r.CompletedAt, ExecutionID: r.ExecutionID,
	}
	if err := unmarshalMap(r.Parameters, &t.Parameters); err != nil {
		return nil, err
	}
	if err := unmarshalMap(r.Result, &t.Result); err != nil {
		return nil, err
	}
	if err := unmarshalMap(r.Metadata, &t.Metadata); err != nil {
		return nil, err
	}
	return t, nil
}

func unmarshalMap(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Create persists a new task in StatusSubmitted, stamping workspace/creator
// from ambient scope.
func (s *Store) Create(ctx context.Context, agentID, description string, params, metadata map[string]any) (*Task, error) {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	p, err := marshalMap(params)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "encode task parameters", err)
	}
	m, err := marshalMap(metadata)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "encode task metadata", err)
	}
	id := store.NewID()
	now := time.Now().UTC()
	q := store.QuerierFrom(ctx, s.pool)
	_, err = q.Exec(ctx, `
INSERT INTO tasks (id, workspace_id, created_by, created_at, updated_at, agent_id, description,
  parameters, status, result, error, started_at, completed_at, execution_id, metadata)
VALUES ($1,$2,$3,$4,$4,$5,$6,$7,$8,'{}',NULL,NULL,NULL,NULL,$9)`,
		id, scope.WorkspaceID, scope.UserID, now, agentID, description, p, string(StatusSubmitted), m)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "insert task", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a task by id, scoped to the ambient workspace.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	q := store.QuerierFrom(ctx, s.pool)
	var r row
	err = pgxscan.Get(ctx, q, &r, `SELECT * FROM tasks WHERE id=$1 AND workspace_id=$2`, id, scope.WorkspaceID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperr.New(apperr.NotFound, "task not found")
		}
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "get task", err)
	}
	return r.toDomain()
}

// List returns tasks scoped to the ambient workspace, per spec §6.1.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Task, error) {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT * FROM tasks WHERE workspace_id=$1`
	args := []any{scope.WorkspaceID}
	if f.AgentID != "" {
		args = append(args, f.AgentID)
		query += fmt.Sprintf(" AND agent_id=$%d", len(args))
	}
	if f.CreatorScoped {
		args = append(args, scope.UserID)
		query += fmt.Sprintf(" AND created_by=$%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if f.Offset > 0 {
			args = append(args, f.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}
	q := store.QuerierFrom(ctx, s.pool)
	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, query, args...); err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "list tasks", err)
	}
	out := make([]Task, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// MarkRunning sets status=running and execution_id once, at workflow start.
// execution_id is immutable thereafter (spec §3 Task invariant).
func (s *Store) MarkRunning(ctx context.Context, id, executionID string) error {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	q := store.QuerierFrom(ctx, s.pool)
	tag, err := q.Exec(ctx, `
UPDATE tasks SET status=$1, execution_id=$2, started_at=$3, updated_at=$3
WHERE id=$4 AND workspace_id=$5 AND execution_id IS NULL`,
		string(StatusRunning), executionID, now, id, scope.WorkspaceID)
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "mark task running", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "task not found or already started")
	}
	return nil
}

// MarkFailed transitions a task directly to failed (e.g. engine start
// failure before any execution_id was assigned, per spec §4.8).
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	q := store.QuerierFrom(ctx, s.pool)
	tag, err := q.Exec(ctx, `
UPDATE tasks SET status=$1, error=$2, completed_at=$3, updated_at=$3
WHERE id=$4 AND workspace_id=$5`,
		string(StatusFailed), reason, now, id, scope.WorkspaceID)
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "mark task failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "task not found")
	}
	return nil
}

// Complete finalizes a task with the workflow's terminal outcome. Per the
// "writers must re-read or merge, never blind-overwrite" rule of spec §3,
// it updates only the completion fields, leaving parameters/metadata
// untouched.
func (s *Store) Complete(ctx context.Context, id string, status Status, result map[string]any, errMsg *string) error {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return err
	}
	r, err := marshalMap(result)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "encode task result", err)
	}
	now := time.Now().UTC()
	q := store.QuerierFrom(ctx, s.pool)
	tag, err := q.Exec(ctx, `
UPDATE tasks SET status=$1, result=$2, error=$3, completed_at=$4, updated_at=$4
WHERE id=$5 AND workspace_id=$6`,
		string(status), r, errMsg, now, id, scope.WorkspaceID)
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "complete task", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "task not found")
	}
	return nil
}

// SetStatus sets only the status column (used for pause/resume/cancel,
// spec §4.8).
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return err
	}
	q := store.QuerierFrom(ctx, s.pool)
	tag, err := q.Exec(ctx, `
UPDATE tasks SET status=$1, updated_at=$2 WHERE id=$3 AND workspace_id=$4`,
		string(status), time.Now().UTC(), id, scope.WorkspaceID)
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "set task status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "task not found")
	}
	return nil
}
