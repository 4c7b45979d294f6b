package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/store"
	"github.com/orbitflow/agentcore/internal/wscontext"
)

// Store is the C3 Trigger Store: a specialization of the workspace-scoped
// store for Trigger and TriggerExecution, persisting the polymorphic trigger
// as one wide row with a `kind` discriminator and nullable type-specific
// columns (spec §4.3, §9).
type Store struct {
	pool *store.Pool
}

// NewStore constructs a trigger Store bound to pool.
func NewStore(pool *store.Pool) *Store {
	return &Store{pool: pool}
}

// row mirrors the triggers table layout for scany scanning.
type row struct {
	ID                  string
	WorkspaceID         string
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Kind                string
	Name                string
	Description         string
	AgentID             string
	IsActive            bool
	TaskParameters      []byte
	Conditions          []byte
	FailureThreshold    int
	ConsecutiveFailures int
	LastExecutionAt     *time.Time
	CronExpression      *string
	Timezone            *string
	NextRunTime         *time.Time
	WebhookID           *string
	AllowedMethods      []string
	WebhookType         *string
	ValidationRules     []byte
	WebhookConfig       []byte
}

func (r *row) toDomain() (*Trigger, error) {
	t := &Trigger{
		ID:                  r.ID,
		WorkspaceID:         r.WorkspaceID,
		CreatedBy:           r.CreatedBy,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
		Kind:                Kind(r.Kind),
		Name:                r.Name,
		Description:         r.Description,
		AgentID:             r.AgentID,
		IsActive:            r.IsActive,
		FailureThreshold:    r.FailureThreshold,
		ConsecutiveFailures: r.ConsecutiveFailures,
		LastExecutionAt:     r.LastExecutionAt,
		CronExpression:      r.CronExpression,
		Timezone:            r.Timezone,
		NextRunTime:         r.NextRunTime,
		WebhookID:           r.WebhookID,
		AllowedMethods:      r.AllowedMethods,
	}
	if r.WebhookType != nil {
		wt := WebhookType(*r.WebhookType)
		t.WebhookType = &wt
	}
	if err := unmarshalMap(r.TaskParameters, &t.TaskParameters); err != nil {
		return nil, err
	}
	if err := unmarshalMap(r.Conditions, &t.Conditions); err != nil {
		return nil, err
	}
	if err := unmarshalMap(r.ValidationRules, &t.ValidationRules); err != nil {
		return nil, err
	}
	if err := unmarshalMap(r.WebhookConfig, &t.WebhookConfig); err != nil {
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

// Create persists a new trigger, stamping workspace_id/created_by from the
// ambient scope. Callers may not override these (spec §4.1).
func (s *Store) Create(ctx context.Context, in Create) (*Trigger, error) {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	taskParams, err := marshalMap(in.TaskParameters)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "encode task_parameters", err)
	}
	conditions, err := marshalMap(in.Conditions)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "encode conditions", err)
	}
	validationRules, err := marshalMap(in.ValidationRules)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "encode validation_rules", err)
	}
	webhookConfig, err := marshalMap(in.WebhookConfig)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "encode webhook_config", err)
	}

	id := store.NewID()
	now := time.Now().UTC()
	q := store.QuerierFrom(ctx, s.pool)

	var cronExpr, tz *string
	if in.Kind == KindCron {
		cronExpr, tz = &in.CronExpression, &in.Timezone
	}
	var webhookID *string
	var webhookType *string
	if in.Kind == KindWebhook {
		webhookID = &in.WebhookID
		wt := string(in.WebhookType)
		webhookType = &wt
	}

	const q1 = `
INSERT INTO triggers (
  id, workspace_id, created_by, created_at, updated_at, kind, name, description,
  agent_id, is_active, task_parameters, conditions, failure_threshold,
  consecutive_failures, cron_expression, timezone, webhook_id, allowed_methods,
  webhook_type, validation_rules, webhook_config
) VALUES ($1,$2,$3,$4,$4,$5,$6,$7,$8,true,$9,$10,$11,0,$12,$13,$14,$15,$16,$17,$18)`
	_, err = q.Exec(ctx, q1,
		id, scope.WorkspaceID, scope.UserID, now, in.Kind, in.Name, in.Description,
		in.AgentID, taskParams, conditions, in.FailureThreshold,
		cronExpr, tz, webhookID, in.AllowedMethods, webhookType, validationRules, webhookConfig,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "insert trigger", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a trigger by id, scoped to the ambient workspace. Cross-
// workspace reads return apperr.NotFound (spec §4.1, §8 universal invariant).
func (s *Store) Get(ctx context.Context, id string) (*Trigger, error) {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	q := store.QuerierFrom(ctx, s.pool)
	var r row
	err = pgxscan.Get(ctx, q, &r, `SELECT * FROM triggers WHERE id=$1 AND workspace_id=$2`, id, scope.WorkspaceID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperr.New(apperr.NotFound, "trigger not found")
		}
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "get trigger", err)
	}
	return r.toDomain()
}

// GetByWebhookID looks up the webhook trigger for routing (C5 entrypoint).
// Unlike Get, this is workspace-unscoped since the public webhook id is
// globally routable; workspace_id still flows with the returned trigger.
func (s *Store) GetByWebhookID(ctx context.Context, webhookID string) (*Trigger, error) {
	q := s.pool.Raw()
	var r row
	err := pgxscan.Get(ctx, q, &r, `SELECT * FROM triggers WHERE webhook_id=$1`, webhookID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperr.New(apperr.NotFound, "webhook not found")
		}
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "get trigger by webhook id", err)
	}
	return r.toDomain()
}

// List returns triggers scoped to the ambient workspace, optionally further
// restricted to the caller's own triggers (creator_scoped).
func (s *Store) List(ctx context.Context, f ListFilter) ([]Trigger, error) {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT * FROM triggers WHERE workspace_id=$1`
	args := []any{scope.WorkspaceID}
	if f.AgentID != "" {
		args = append(args, f.AgentID)
		query += fmt.Sprintf(" AND agent_id=$%d", len(args))
	}
	if f.TriggerType != "" {
		args = append(args, string(f.TriggerType))
		query += fmt.Sprintf(" AND kind=$%d", len(args))
	}
	if f.ActiveOnly {
		query += " AND is_active=true"
	}
	if f.CreatorScoped {
		args = append(args, scope.UserID)
		query += fmt.Sprintf(" AND created_by=$%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	q := store.QuerierFrom(ctx, s.pool)
	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, query, args...); err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "list triggers", err)
	}
	out := make([]Trigger, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// Update applies a partial update, scoped to the ambient workspace. A
// mismatched workspace_id is a silent no-op returning apperr.NotFound,
// matching Delete's semantics (spec §4.1).
func (s *Store) Update(ctx context.Context, id string, in Update) (*Trigger, error) {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	sets := []string{"updated_at=$1"}
	args := []any{time.Now().UTC()}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if in.Name != nil {
		add("name", *in.Name)
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.IsActive != nil {
		add("is_active", *in.IsActive)
	}
	if in.TaskParameters != nil {
		b, err := marshalMap(in.TaskParameters)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "encode task_parameters", err)
		}
		add("task_parameters", b)
	}
	if in.Conditions != nil {
		b, err := marshalMap(in.Conditions)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "encode conditions", err)
		}
		add("conditions", b)
	}
	if in.FailureThreshold != nil {
		add("failure_threshold", *in.FailureThreshold)
	}
	if in.CronExpression != nil {
		add("cron_expression", *in.CronExpression)
	}
	if in.Timezone != nil {
		add("timezone", *in.Timezone)
	}
	if in.AllowedMethods != nil {
		add("allowed_methods", in.AllowedMethods)
	}
	if in.ValidationRules != nil {
		b, err := marshalMap(in.ValidationRules)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "encode validation_rules", err)
		}
		add("validation_rules", b)
	}
	if in.WebhookConfig != nil {
		b, err := marshalMap(in.WebhookConfig)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "encode webhook_config", err)
		}
		add("webhook_config", b)
	}

	args = append(args, id, scope.WorkspaceID)
	query := fmt.Sprintf(
		"UPDATE triggers SET %s WHERE id=$%d AND workspace_id=$%d",
		joinSets(sets), len(args)-1, len(args),
	)
	q := store.QuerierFrom(ctx, s.pool)
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "update trigger", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.New(apperr.NotFound, "trigger not found")
	}
	return s.Get(ctx, id)
}

// Delete removes a trigger (and, via FK cascade, its executions), scoped to
// the ambient workspace. No-op (not-found) on workspace mismatch.
func (s *Store) Delete(ctx context.Context, id string) error {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return err
	}
	q := store.QuerierFrom(ctx, s.pool)
	tag, err := q.Exec(ctx, `DELETE FROM triggers WHERE id=$1 AND workspace_id=$2`, id, scope.WorkspaceID)
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "delete trigger", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "trigger not found")
	}
	return nil
}

// ListCronDue returns cron triggers whose next_run_time has elapsed. Nothing
// in the server calls it, the reconciler included; scheduling is done by
// the workflow engine's own Schedule API.
func (s *Store) ListCronDue(ctx context.Context, now time.Time) ([]Trigger, error) {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	q := store.QuerierFrom(ctx, s.pool)
	var rows []row
	err = pgxscan.Select(ctx, q, &rows, `
SELECT * FROM triggers
WHERE workspace_id=$1 AND kind='cron' AND is_active=true AND next_run_time <= $2`,
		scope.WorkspaceID, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "list cron due", err)
	}
	out := make([]Trigger, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// UpdateExecutionTracking atomically updates last_execution_at and
// consecutive_failures under a single-row read-modify-write, serializing
// concurrent executions of the same trigger at the row level (spec §5).
func (s *Store) UpdateExecutionTracking(ctx context.Context, id string, lastExecutionAt time.Time, consecutiveFailures int) error {
	scope, err := store.RequireScope(ctx)
	if err != nil {
		return err
	}
	q := store.QuerierFrom(ctx, s.pool)
	tag, err := q.Exec(ctx, `
UPDATE triggers SET last_execution_at=$1, consecutive_failures=$2, updated_at=$1
WHERE id=$3 AND workspace_id=$4`,
		lastExecutionAt, consecutiveFailures, id, scope.WorkspaceID)
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "update execution tracking", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "trigger not found")
	}
	return nil
}

// RecordExecution appends a TriggerExecution row.
func (s *Store) RecordExecution(ctx context.Context, e TriggerExecution) (*TriggerExecution, error) {
	if _, err := store.RequireScope(ctx); err != nil {
		return nil, err
	}
	triggerData, err := marshalMap(e.TriggerData)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "encode trigger_data", err)
	}
	id := store.NewID()
	now := time.Now().UTC()
	q := store.QuerierFrom(ctx, s.pool)
	_, err = q.Exec(ctx, `
INSERT INTO trigger_executions (
  id, trigger_id, executed_at, status, task_id, execution_time_ms,
  error_message, trigger_data, workflow_id, run_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		id, e.TriggerID, now, string(e.Status), e.TaskID, e.ExecutionTimeMs,
		e.ErrorMessage, triggerData, e.WorkflowID, e.RunID)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "insert trigger execution", err)
	}
	e.ID = id
	e.ExecutedAt = now
	return &e, nil
}

// ListExecutions returns a paginated, filtered view of a trigger's execution
// history (spec §6.1 GET /v1/triggers/{id}/executions).
func (s *Store) ListExecutions(ctx context.Context, triggerID string, f ExecutionFilter) (*ExecutionPage, error) {
	if _, err := store.RequireScope(ctx); err != nil {
		return nil, err
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	where := "trigger_id=$1"
	args := []any{triggerID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if f.StartTime != nil {
		args = append(args, *f.StartTime)
		where += fmt.Sprintf(" AND executed_at>=$%d", len(args))
	}
	if f.EndTime != nil {
		args = append(args, *f.EndTime)
		where += fmt.Sprintf(" AND executed_at<=$%d", len(args))
	}

	q := store.QuerierFrom(ctx, s.pool)
	var total int
	if err := pgxscan.Get(ctx, q, &total, "SELECT count(*) FROM trigger_executions WHERE "+where, args...); err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "count trigger executions", err)
	}

	offset := (f.Page - 1) * f.PageSize
	pagedArgs := append(append([]any{}, args...), f.PageSize, offset)
	query := fmt.Sprintf(
		"SELECT * FROM trigger_executions WHERE %s ORDER BY executed_at DESC LIMIT $%d OFFSET $%d",
		where, len(pagedArgs)-1, len(pagedArgs),
	)
	var execRows []execRow
	if err := pgxscan.Select(ctx, q, &execRows, query, pagedArgs...); err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "list trigger executions", err)
	}
	execs := make([]TriggerExecution, 0, len(execRows))
	for i := range execRows {
		e, err := execRows[i].toDomain()
		if err != nil {
			return nil, err
		}
		execs = append(execs, *e)
	}
	return &ExecutionPage{
		Executions: execs,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		HasNext:    offset+len(execs) < total,
	}, nil
}

type execRow struct {
	ID              string
	TriggerID       string
	ExecutedAt      time.Time
	Status          string
	TaskID          *string
	ExecutionTimeMs int64
	ErrorMessage    *string
	TriggerData     []byte
	WorkflowID      *string
	RunID           *string
}

func (r *execRow) toDomain() (*TriggerExecution, error) {
	e := &TriggerExecution{
		ID:              r.ID,
		TriggerID:       r.TriggerID,
		ExecutedAt:      r.ExecutedAt,
		Status:          ExecutionStatus(r.Status),
		TaskID:          r.TaskID,
		ExecutionTimeMs: r.ExecutionTimeMs,
		ErrorMessage:    r.ErrorMessage,
		WorkflowID:      r.WorkflowID,
		RunID:           r.RunID,
	}
	if err := unmarshalMap(r.TriggerData, &e.TriggerData); err != nil {
		return nil, err
	}
	return e, nil
}

// Metrics aggregates execution analytics over the trailing window (spec §4.3,
// §6.1 GET /v1/triggers/{id}/metrics).
func (s *Store) Metrics(ctx context.Context, triggerID string, since time.Time) (*Metrics, error) {
	if _, err := store.RequireScope(ctx); err != nil {
		return nil, err
	}
	q := store.QuerierFrom(ctx, s.pool)
	var m Metrics
	row := q.QueryRow(ctx, `
SELECT
  count(*),
  count(*) FILTER (WHERE status='success'),
  count(*) FILTER (WHERE status='failed'),
  count(*) FILTER (WHERE status='timeout'),
  count(*) FILTER (WHERE status='cancelled'),
  coalesce(avg(execution_time_ms),0),
  coalesce(min(execution_time_ms),0),
  coalesce(max(execution_time_ms),0)
FROM trigger_executions WHERE trigger_id=$1 AND executed_at >= $2`, triggerID, since)
	if err := row.Scan(
		&m.TotalExecutions, &m.SuccessCount, &m.FailedCount, &m.TimeoutCount, &m.CancelledCount,
		&m.AvgExecutionMs, &m.MinExecutionMs, &m.MaxExecutionMs,
	); err != nil {
		if err == pgx.ErrNoRows {
			return &m, nil
		}
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "trigger metrics", err)
	}
	return &m, nil
}

// Timeline returns a time-bucketed execution timeline (spec §4.3, §6.1
// GET /v1/triggers/{id}/timeline). bucketMinutes defaults to 60 (hourly).
func (s *Store) Timeline(ctx context.Context, triggerID string, since time.Time, bucketMinutes int) ([]TimelineBucket, error) {
	if _, err := store.RequireScope(ctx); err != nil {
		return nil, err
	}
	if bucketMinutes <= 0 {
		bucketMinutes = 60
	}
	q := store.QuerierFrom(ctx, s.pool)
	rows, err := q.Query(ctx, `
SELECT
  to_timestamp(floor(extract(epoch from executed_at) / ($3 * 60)) * ($3 * 60)) AS bucket,
  count(*),
  count(*) FILTER (WHERE status='success'),
  count(*) FILTER (WHERE status='failed')
FROM trigger_executions
WHERE trigger_id=$1 AND executed_at >= $2
GROUP BY bucket ORDER BY bucket ASC`, triggerID, since, bucketMinutes)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "trigger timeline", err)
	}
	defer rows.Close()
	var out []TimelineBucket
	for rows.Next() {
		var b TimelineBucket
		if err := rows.Scan(&b.BucketStart, &b.Total, &b.Success, &b.Failed); err != nil {
			return nil, apperr.Wrap(apperr.DependencyUnavailable, "scan timeline bucket", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}
