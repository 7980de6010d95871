package eventlog

import (
	"sync"
	"time"

	"jobcontroller/internal/attr"
)

// Memory is a Log that keeps entries in memory.
type Memory struct {
	mu       sync.Mutex
	entries  []Entry
	flushes  int
	WriteErr error // returned by every write when set
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) WriteEvent(ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	attrs := ev.Attrs.Clone()
	attrs.Remove(attr.EventTime)
	m.entries = append(m.entries, Entry{
		Time:   time.Now().UTC(),
		Number: ev.Number,
		Name:   ev.Number.String(),
		Attrs:  attrs,
	})
	return nil
}

func (m *Memory) WriteException(message string) error {
	rec := attr.New()
	rec.SetString(attr.Message, message)
	return m.WriteEvent(New(ControllerException, rec))
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	return nil
}

// Entries returns a copy of the written entries.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Numbers returns the event numbers written, in order.
func (m *Memory) Numbers() []Number {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Number, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Number
	}
	return out
}

// Flushes returns how many times Flush was called.
func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

var _ Log = (*Memory)(nil)
