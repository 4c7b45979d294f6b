package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/store"
)

// Log is the durable per-task event log backed by the task_events table
// (spec §3 TaskEvent, §6.3: heavily indexed on (task_id, timestamp)).
// Exactly-once delivery to the log is enforced by a primary key on event_id
// (spec §4.2).
type Log struct {
	pool *store.Pool
}

// NewLog constructs a Log bound to pool.
func NewLog(pool *store.Pool) *Log {
	return &Log{pool: pool}
}

// Append inserts ev, silently ignoring a duplicate event_id (the exactly-
// once guarantee for the durable log).
func (l *Log) Append(ctx context.Context, ev DomainEvent) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "encode event data", err)
	}
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "encode event metadata", err)
	}
	q := store.QuerierFrom(ctx, l.pool)
	_, err = q.Exec(ctx, `
INSERT INTO task_events (id, task_id, event_type, timestamp, data, metadata)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING`,
		ev.EventID, ev.TaskID, ev.EventType, ev.Timestamp, data, meta)
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "append task event", err)
	}
	return nil
}

type eventRow struct {
	ID        string
	TaskID    string
	EventType string
	Timestamp time.Time
	Data      []byte
	Metadata  []byte
}

func (r *eventRow) toDomain() (DomainEvent, error) {
	ev := DomainEvent{
		EventID:   r.ID,
		TaskID:    r.TaskID,
		EventType: r.EventType,
		Timestamp: r.Timestamp,
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &ev.Data); err != nil {
			return ev, err
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &ev.Metadata); err != nil {
			return ev, err
		}
	}
	return ev, nil
}

// ListSince returns persisted events for taskID in ascending timestamp order.
// Events with equal timestamps are ordered by id, a random UUID, so their
// relative order does not follow insertion order.
func (l *Log) ListSince(ctx context.Context, taskID string) ([]DomainEvent, error) {
	q := store.QuerierFrom(ctx, l.pool)
	var rows []eventRow
	err := pgxscan.Select(ctx, q, &rows, `
SELECT * FROM task_events WHERE task_id=$1 ORDER BY timestamp ASC, id ASC`, taskID)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "list task events", err)
	}
	out := make([]DomainEvent, 0, len(rows))
	for i := range rows {
		ev, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
