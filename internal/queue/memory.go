package queue

import (
	"context"
	"sync"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
)

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu   sync.Mutex
	jobs map[string]*attr.Record
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]*attr.Record)}
}

func (m *Memory) Save(ctx context.Context, jobID string, rec *attr.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[jobID]
	if !ok {
		stored = attr.New()
		m.jobs[jobID] = stored
	}
	stored.Update(rec)
	return nil
}

func (m *Memory) SetAttr(ctx context.Context, jobID, name, expr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[jobID]
	if !ok {
		stored = attr.New()
		m.jobs[jobID] = stored
	}
	stored.SetExpr(name, expr)
	return nil
}

func (m *Memory) Load(ctx context.Context, jobID string) (*attr.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[jobID]
	if !ok {
		return nil, apperrors.NotFound("job", jobID)
	}
	return stored.Clone(), nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
