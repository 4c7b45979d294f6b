package eventbus

import (
	"context"

	"github.com/orbitflow/agentcore/internal/telemetry"
)

// Bus composes the durable Log and the fan-out Broker into the Event Bus
// contract of spec §4.2: exactly-once to the DB log, at-least-once to the
// broker, with a replay+live subscription that never drops an event landing
// between the DB snapshot read and the live subscription starting.
type Bus struct {
	log    *Log
	broker *Broker
	log_   telemetry.Logger
}

// NewBus constructs a Bus from a durable Log and a fan-out Broker.
func NewBus(log *Log, broker *Broker, logger telemetry.Logger) *Bus {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Bus{log: log, broker: broker, log_: logger}
}

// Publish appends ev to the durable log (exactly-once) and forwards it to
// the broker (at-least-once, best-effort — publishing failure is logged but
// never fails the workflow activity that called this, per spec §7).
func (b *Bus) Publish(ctx context.Context, ev DomainEvent) error {
	if err := b.log.Append(ctx, ev); err != nil {
		return err
	}
	if err := b.broker.Publish(ctx, ev); err != nil {
		b.log_.Warn(ctx, "broker publish failed; event remains in durable log",
			"task_id", ev.TaskID, "event_type", ev.EventType, "err", err)
	}
	return nil
}

// ListSince returns the persisted event history for a task in ascending
// timestamp order, backing the paginated (non-streaming) events endpoint.
func (b *Bus) ListSince(ctx context.Context, taskID string) ([]DomainEvent, error) {
	return b.log.ListSince(ctx, taskID)
}

// Subscribe implements the replay+live subscription contract of spec §4.2:
//  1. Open a broker subscription filtered to task_id, buffering into a queue.
//  2. Read and yield all persisted TaskEvent rows in ascending timestamp.
//  3. Drain the buffered queue, deduplicating by event_id against what was
//     already yielded.
//  4. Continue yielding from the live subscription.
//  5. Terminate on any terminal event type or client cancellation.
//
// The naive "listen first, read DB second" ordering (spec §9 design note)
// would miss events written between steps; subscribing before the DB read
// closes that gap, and deduplication by event_id absorbs the overlap.
func (b *Bus) Subscribe(ctx context.Context, taskID string) <-chan DomainEvent {
	out := make(chan DomainEvent, 64)
	go b.run(ctx, taskID, out)
	return out
}

func (b *Bus) run(ctx context.Context, taskID string, out chan<- DomainEvent) {
	defer close(out)

	sub := b.broker.Subscribe(ctx, taskID)
	defer sub.Close()

	// Buffer live messages that arrive while we're still reading the DB
	// snapshot, so nothing published between subscribe and snapshot-read is
	// lost.
	buffered := make(chan DomainEvent, 256)
	bufferCtx, cancelBuffer := context.WithCancel(ctx)
	defer cancelBuffer()
	go func() {
		for {
			ev, ok, err := sub.Next(bufferCtx)
			if err != nil || !ok {
				close(buffered)
				return
			}
			select {
			case buffered <- ev:
			case <-bufferCtx.Done():
				close(buffered)
				return
			}
		}
	}()

	seen := make(map[string]bool)
	emit := func(ev DomainEvent) bool {
		if seen[ev.EventID] {
			return true
		}
		seen[ev.EventID] = true
		select {
		case out <- ev:
		case <-ctx.Done():
			return false
		}
		return !IsTerminal(ev.EventType)
	}

	historical, err := b.log.ListSince(ctx, taskID)
	if err != nil {
		b.log_.Error(ctx, "failed to read historical task events", "task_id", taskID, "err", err)
		return
	}
	for _, ev := range historical {
		if !emit(ev) {
			return
		}
	}

	// Drain whatever accumulated in the buffer while we were reading the
	// snapshot, then continue consuming live.
	for {
		select {
		case ev, ok := <-buffered:
			if !ok {
				return
			}
			if !emit(ev) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
