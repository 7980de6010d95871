// Package queue persists job attributes back to the job queue.
package queue

import (
	"context"

	"jobcontroller/internal/attr"
)

// Store is the controller's view of the job queue.
type Store interface {
	// Save writes every attribute of rec for jobID, replacing stored values.
	Save(ctx context.Context, jobID string, rec *attr.Record) error
	// SetAttr writes one attribute as expression text.
	SetAttr(ctx context.Context, jobID, name, expr string) error
	// Load returns the stored attributes of jobID.
	Load(ctx context.Context, jobID string) (*attr.Record, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
