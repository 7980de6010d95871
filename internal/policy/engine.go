package policy

import (
	"jobcontroller/internal/attr"
)

// Engine answers policy questions about a path from the job record's policy attributes.
// It reads the record on every call so attribute updates take effect immediately.
type Engine struct {
	rec *attr.Record
}

// NewEngine returns an Engine backed by rec.
func NewEngine(rec *attr.Record) *Engine {
	return &Engine{rec: rec}
}

func (e *Engine) list(name string) List {
	s, _ := e.rec.LookupString(name)
	return ParseList(s)
}

// Local reports whether path must be accessed on the agent's machine.
func (e *Engine) Local(path string) bool {
	return path == "/dev/null" ||
		path == "/dev/zero" ||
		e.list(attr.LocalFiles).Contains(path)
}

// Fetch reports whether path should be fetched whole before use.
func (e *Engine) Fetch(path string) bool {
	return e.list(attr.FetchFiles).Contains(path)
}

// Compress reports whether path should be accessed compressed.
func (e *Engine) Compress(path string) bool {
	return e.list(attr.CompressFiles).Contains(path)
}

// Append reports whether path should be opened in append-only mode.
func (e *Engine) Append(path string) bool {
	return e.list(attr.AppendFiles).Contains(path)
}

// Remaps returns the job's remap table.
func (e *Engine) Remaps() RemapTable {
	s, _ := e.rec.LookupString(attr.FileRemaps)
	return ParseRemaps(s)
}

// BufferOverride reports whether path, or its base filename, is named in the per-file
// buffer list. params is set when the entry carries an explicit "(size,blocksize)".
func (e *Engine) BufferOverride(path string) (params *BufferParams, ok bool) {
	s, found := e.rec.LookupString(attr.BufferFiles)
	if !found {
		return nil, false
	}
	setting, ok := ParseRemaps(s).Find(path, BaseName(path))
	if !ok {
		return nil, false
	}
	if p, parsed := ParseBufferParams(setting); parsed {
		return &p, true
	}
	return nil, true
}
