package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/your-org/promptchain/internal/trace"
	"github.com/your-org/promptchain/pkg/chain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultCacheSize = 128

// startedLayout is fixed width so started_at sorts correctly as TEXT.
const startedLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	chain TEXT NOT NULL,
	provider TEXT,
	model TEXT,
	status TEXT NOT NULL,
	error TEXT,
	failed_step INTEGER DEFAULT 0,
	started_at TEXT NOT NULL,
	duration_ms INTEGER DEFAULT 0,
	steps INTEGER DEFAULT 0,
	total_tokens INTEGER DEFAULT 0,
	trace JSON NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_chain ON runs(chain);
`

// SQLiteStore stores records in a SQLite file with an LRU read cache.
type SQLiteStore struct {
	db    *sql.DB
	cache *lru.Cache[string, trace.Record]
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}

	cache, err := lru.New[string, trace.Record](defaultCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: cache: %w", err)
	}
	return &SQLiteStore{db: db, cache: cache}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec trace.Record) error {
	if rec.ID == "" {
		return errors.New("store: record id is empty")
	}
	body, err := json.Marshal(rec.Trace)
	if err != nil {
		return fmt.Errorf("store: marshal trace: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, chain, provider, model, status, error, failed_step, started_at, duration_ms, steps, total_tokens, trace)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			failed_step = excluded.failed_step,
			duration_ms = excluded.duration_ms,
			steps = excluded.steps,
			total_tokens = excluded.total_tokens,
			trace = excluded.trace`,
		rec.ID, rec.Chain, rec.Provider, rec.Model, rec.Status, rec.Error, rec.FailedStep,
		rec.StartedAt.UTC().Format(startedLayout), rec.DurationMS, len(rec.Trace.Steps), rec.Trace.TotalTokens, string(body))
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}
	s.cache.Add(rec.ID, rec)
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (trace.Record, error) {
	if rec, ok := s.cache.Get(id); ok {
		return rec, nil
	}

	var (
		rec                   trace.Record
		provider, model, errs sql.NullString
		started, body         string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chain, provider, model, status, error, failed_step, started_at, duration_ms, trace
		FROM runs WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Chain, &provider, &model, &rec.Status, &errs, &rec.FailedStep, &started, &rec.DurationMS, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return trace.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return trace.Record{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	rec.Provider, rec.Model, rec.Error = provider.String, model.String, errs.String
	if rec.StartedAt, err = time.Parse(startedLayout, started); err != nil {
		return trace.Record{}, fmt.Errorf("store: get %s: started_at: %w", id, err)
	}
	var tr chain.Trace
	if err := json.Unmarshal([]byte(body), &tr); err != nil {
		return trace.Record{}, fmt.Errorf("store: get %s: decode trace: %w", id, err)
	}
	rec.Trace = tr

	s.cache.Add(id, rec)
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]trace.Summary, error) {
	query := `SELECT id, chain, status, steps, total_tokens, started_at FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := make([]trace.Summary, 0)
	for rows.Next() {
		var (
			sum     trace.Summary
			started string
		)
		if err := rows.Scan(&sum.ID, &sum.Chain, &sum.Status, &sum.Steps, &sum.TotalTokens, &started); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		if sum.StartedAt, err = time.Parse(startedLayout, started); err != nil {
			return nil, fmt.Errorf("store: list %s: started_at: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.cache.Purge()
	return s.db.Close()
}
