// Package store keeps run records for the trace viewer.
package store

import (
	"context"
	"errors"

	"github.com/your-org/promptchain/internal/trace"
)

var ErrNotFound = errors.New("store: trace not found")

// Store persists run records.
type Store interface {
	Save(ctx context.Context, rec trace.Record) error
	Get(ctx context.Context, id string) (trace.Record, error)
	// List returns summaries, newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]trace.Summary, error)
	Close() error
}
