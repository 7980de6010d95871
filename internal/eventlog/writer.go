package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"jobcontroller/internal/attr"
)

// Log is the durable job event log.
type Log interface {
	// WriteEvent appends an event, stamping it with the writer's clock.
	WriteEvent(ev *Event) error
	// WriteException records a controller exception message as a
	// ControllerExceptionEvent. Critical remote errors go through here.
	WriteException(message string) error
	// Flush makes written events durable.
	Flush() error
}

// Entry is one line of the event log.
type Entry struct {
	Time   time.Time    `json:"time"`
	Number Number       `json:"eventNumber"`
	Name   string       `json:"eventName"`
	Attrs  *attr.Record `json:"attrs"`
}

// Sink receives every entry after it is written.
type Sink interface {
	Forward(entry Entry)
}

// Option configures a FileWriter.
type Option func(*FileWriter)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *FileWriter) { w.now = now }
}

// WithSink adds a sink that sees every written entry.
func WithSink(s Sink) Option {
	return func(w *FileWriter) { w.sinks = append(w.sinks, s) }
}

// FileWriter appends events to a JSON-lines file. Each event is encoded in full and
// written with a single write, so a failed write affects only that event.
type FileWriter struct {
	mu    sync.Mutex
	file  *os.File
	out   io.Writer
	now   func() time.Time
	sinks []Sink
}

// OpenFile opens (creating if needed) the event log at path for appending.
func OpenFile(path string, opts ...Option) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	w := &FileWriter{
		file: f,
		out:  f,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WriteEvent appends ev. Any EventTime the event carries is dropped in favour of the
// writer's clock.
func (w *FileWriter) WriteEvent(ev *Event) error {
	attrs := ev.Attrs.Clone()
	attrs.Remove(attr.EventTime)
	entry := Entry{
		Time:   w.now().UTC(),
		Number: ev.Number,
		Name:   ev.Number.String(),
		Attrs:  attrs,
	}

	var line bytes.Buffer
	if err := json.NewEncoder(&line).Encode(entry); err != nil {
		return fmt.Errorf("encode %s: %w", entry.Name, err)
	}
	w.mu.Lock()
	_, err := w.out.Write(line.Bytes())
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write %s: %w", entry.Name, err)
	}

	for _, s := range w.sinks {
		s.Forward(entry)
	}
	return nil
}

// WriteException appends a ControllerExceptionEvent carrying message.
func (w *FileWriter) WriteException(message string) error {
	rec := attr.New()
	rec.SetString(attr.Message, message)
	return w.WriteEvent(New(ControllerException, rec))
}

// Flush syncs written events to disk.
func (w *FileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close flushes and closes the file.
func (w *FileWriter) Close() error {
	if err := w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// ReadEntries decodes every entry from an event log stream.
func ReadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	dec := json.NewDecoder(r)
	for {
		var e Entry
		if err := dec.Decode(&e); err == io.EOF {
			return entries, nil
		} else if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}

// ReadFile decodes every entry of the event log at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEntries(f)
}

var _ Log = (*FileWriter)(nil)
