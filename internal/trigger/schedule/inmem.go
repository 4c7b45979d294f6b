package schedule

import (
	"context"
	"sync"

	"github.com/orbitflow/agentcore/internal/apperr"
)

// InMemoryManager is a process-local Manager used in tests and by the
// in-memory workflow engine adapter, mirroring the shape of the teacher's
// runtime/agent/engine/inmem package.
type InMemoryManager struct {
	mu        sync.Mutex
	schedules map[string]*entry
}

type entry struct {
	cron     string
	timezone string
	paused   bool
}

// NewInMemoryManager constructs an empty in-memory schedule manager.
func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{schedules: make(map[string]*entry)}
}

func (m *InMemoryManager) Create(_ context.Context, triggerID, cronExpression, timezone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[ScheduleID(triggerID)] = &entry{cron: cronExpression, timezone: timezone}
	return nil
}

func (m *InMemoryManager) Update(_ context.Context, triggerID, cronExpression, timezone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ScheduleID(triggerID)
	e, ok := m.schedules[id]
	if !ok {
		e = &entry{}
		m.schedules[id] = e
	}
	e.cron, e.timezone = cronExpression, timezone
	return nil
}

func (m *InMemoryManager) Pause(_ context.Context, triggerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.schedules[ScheduleID(triggerID)]; ok {
		e.paused = true
	}
	return nil
}

func (m *InMemoryManager) Unpause(_ context.Context, triggerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.schedules[ScheduleID(triggerID)]; ok {
		e.paused = false
	}
	return nil
}

func (m *InMemoryManager) Delete(_ context.Context, triggerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, ScheduleID(triggerID))
	return nil
}

func (m *InMemoryManager) Describe(_ context.Context, triggerID string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.schedules[ScheduleID(triggerID)]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "schedule not found")
	}
	return &Info{ScheduleID: ScheduleID(triggerID), Paused: e.paused}, nil
}

func (m *InMemoryManager) ListActive(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.schedules))
	for id, e := range m.schedules {
		if !e.paused {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
