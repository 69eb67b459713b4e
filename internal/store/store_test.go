package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/promptchain/internal/trace"
	"github.com/your-org/promptchain/pkg/chain"
)

func sampleRecord(id string, started time.Time) trace.Record {
	obj := chain.NewObject()
	obj.Set("why", "root cause")
	obj.Set("confidence", 0.8)
	tr := chain.Trace{
		Name: "five_whys",
		Steps: []chain.StepRecord{
			{StepNumber: 1, Role: "Analyst", Prompt: "Why did it fail?", Response: chain.Text("Disk full."), Tokens: 9},
			{StepNumber: 2, Role: "Analyst", Prompt: "Why? Disk full.", Response: chain.Structured(obj), Tokens: 12},
		},
		FinalResult: chain.Structured(obj),
		TotalTokens: 21,
	}
	rec := trace.NewRecord(id, "five_whys", tr, started, started.Add(40*time.Millisecond), nil)
	rec.Provider, rec.Model = "echo", "m"
	return rec
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleRecord("a", base)))
	require.NoError(t, s.Save(ctx, sampleRecord("b", base.Add(time.Minute))))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "five_whys", got.Chain)
	assert.Equal(t, "echo", got.Provider)
	assert.True(t, base.Equal(got.StartedAt))
	assert.Equal(t, 21, got.Trace.TotalTokens)
	assert.Equal(t, []string{"why", "confidence"}, got.Trace.FinalResult.Object().Keys())
	assert.Equal(t, "Disk full.", got.Trace.Steps[0].Response.String())

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, 2, list[0].Steps)

	list, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	failed := sampleRecord("a", base)
	failed.Status = trace.StatusFailed
	failed.Error = "boom"
	require.NoError(t, s.Save(ctx, failed))
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, trace.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func exerciseSubSecondOrder(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleRecord("whole", base)))
	require.NoError(t, s.Save(ctx, sampleRecord("tenth", base.Add(100*time.Millisecond))))
	require.NoError(t, s.Save(ctx, sampleRecord("later", base.Add(120*time.Millisecond))))

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, sum := range list {
		ids[i] = sum.ID
	}
	assert.Equal(t, []string{"later", "tenth", "whole"}, ids)
}

func TestListOrdersRunsWithinOneSecond(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseSubSecondOrder(t, db)

	dir, err := NewDirStore(filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, err)
	exerciseSubSecondOrder(t, dir)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "traces.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreReadsThroughCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleRecord("x", time.Now())))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, got.Trace.Steps, 2)
	assert.True(t, reopened.cache.Contains("x"))
}

func TestDirStore(t *testing.T) {
	s, err := NewDirStore(filepath.Join(t.TempDir(), "traces"))
	require.NoError(t, err)
	exerciseStore(t, s)

	assert.Error(t, s.Save(context.Background(), trace.Record{ID: "../escape"}))
	_, err = s.Get(context.Background(), "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("", dir)
	require.NoError(t, err)
	assert.IsType(t, &DirStore{}, s)

	s, err = Open(filepath.Join(dir, "t.db"), "")
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}
