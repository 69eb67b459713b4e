package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/your-org/promptchain/internal/trace"
)

// DirStore keeps one JSON record file per run in a directory. It is the
// default when no database is configured.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) (*DirStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("store: trace directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %q: %w", dir, err)
	}
	return &DirStore{dir: dir}, nil
}

func (d *DirStore) path(id string) string {
	return filepath.Join(d.dir, id+".run.json")
}

func (d *DirStore) Save(_ context.Context, rec trace.Record) error {
	if rec.ID == "" || strings.ContainsAny(rec.ID, `/\`) {
		return fmt.Errorf("store: invalid record id %q", rec.ID)
	}
	return trace.SaveRecord(d.path(rec.ID), rec)
}

func (d *DirStore) Get(_ context.Context, id string) (trace.Record, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return trace.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec, err := readRecord(d.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return trace.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

func (d *DirStore) List(ctx context.Context, limit int) ([]trace.Summary, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*.run.json"))
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	out := make([]trace.Summary, 0, len(matches))
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *DirStore) Close() error { return nil }

func readRecord(path string) (trace.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return trace.Record{}, err
	}
	rec, err := trace.DecodeRecord(b)
	if err != nil {
		return trace.Record{}, fmt.Errorf("store: decode %q: %w", path, err)
	}
	return rec, nil
}

// Open picks the SQLite store when dbPath is set, otherwise a DirStore.
func Open(dbPath, traceDir string) (Store, error) {
	if dbPath != "" {
		return OpenSQLite(dbPath)
	}
	return NewDirStore(traceDir)
}
