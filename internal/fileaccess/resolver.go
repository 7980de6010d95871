// Package fileaccess turns the logical file names a job opens into access URLs that tell
// the agent how and where to reach each file.
package fileaccess

import (
	"log/slog"
	"strings"

	"jobcontroller/internal/attr"
	"jobcontroller/internal/policy"
)

// Locality tokens.
const (
	Local  = "local"
	Remote = "remote"
)

// Modifier tokens, in the order they appear in an access URL.
const (
	tokenFetch    = "fetch"
	tokenCompress = "compress"
	tokenBuffer   = "buffer"
	tokenAppend   = "append"
)

// deviceDir holds special files that are never buffered.
const deviceDir = "/dev/"

// BufferInfo is the job's default I/O buffer configuration.
type BufferInfo struct {
	Bytes         int64
	BlockSize     int64
	PrefetchBytes int64
}

// Resolver composes access URLs from the job record. It holds no state of its own, so
// identical names resolve identically against an unchanged record.
type Resolver struct {
	rec    *attr.Record
	policy *policy.Engine
	logger *slog.Logger
}

// NewResolver returns a Resolver backed by the job record.
func NewResolver(rec *attr.Record) *Resolver {
	return &Resolver{
		rec:    rec,
		policy: policy.NewEngine(rec),
		logger: slog.With("component", "fileaccess"),
	}
}

// Resolve converts a logical file name into an access URL of the form
// [fetch:][compress:][buffer[:(size,block)]:][append:]{local|remote}:/abs/path.
// A remap target containing ':' is returned verbatim.
func (r *Resolver) Resolve(logicalName string) string {
	fullPath := r.completePath(logicalName)

	if target, ok := r.policy.Remaps().Find(logicalName, policy.BaseName(logicalName), fullPath); ok {
		if strings.Contains(target, ":") {
			r.logger.Debug("Remapped to complete URL", "name", logicalName, "url", target)
			return target
		}
		fullPath = r.completePath(target)
		r.logger.Debug("Remapped to file", "name", logicalName, "path", fullPath)
	}

	locality := Remote
	if r.policy.Local(fullPath) {
		locality = Local
	}

	var url strings.Builder
	if r.policy.Fetch(fullPath) {
		url.WriteString(tokenFetch + ":")
	}
	if r.policy.Compress(fullPath) {
		url.WriteString(tokenCompress + ":")
	}
	if tok := r.bufferToken(fullPath, locality); tok != "" {
		url.WriteString(tok + ":")
	}
	if r.policy.Append(fullPath) {
		url.WriteString(tokenAppend + ":")
	}
	url.WriteString(locality)
	url.WriteByte(':')
	url.WriteString(fullPath)

	r.logger.Debug("Resolved file", "name", logicalName, "url", url.String())
	return url.String()
}

// bufferToken returns the buffer modifier for path, or "" when it is not buffered.
func (r *Resolver) bufferToken(path, locality string) string {
	if strings.HasPrefix(path, deviceDir) {
		return ""
	}
	if params, ok := r.policy.BufferOverride(path); ok {
		if params != nil {
			return tokenBuffer + ":" + params.String()
		}
		return tokenBuffer
	}
	info := r.BufferInfo()
	if info.Bytes > 0 && info.BlockSize > 0 && locality != Local {
		return tokenBuffer
	}
	return ""
}

// BufferInfo returns the job's buffer configuration with negative values clamped to
// zero and the block size capped at the buffer size. PrefetchBytes is always zero.
func (r *Resolver) BufferInfo() BufferInfo {
	bytes, _ := r.rec.LookupInt(attr.BufferSize)
	block, _ := r.rec.LookupInt(attr.BufferBlockSize)
	if bytes < 0 {
		bytes = 0
	}
	if block < 0 {
		block = 0
	}
	if bytes < block {
		block = bytes
	}
	return BufferInfo{Bytes: bytes, BlockSize: block}
}

// completePath anchors relative names at the job's initial working directory.
func (r *Resolver) completePath(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	iwd, _ := r.rec.LookupString(attr.Iwd)
	return iwd + "/" + name
}
