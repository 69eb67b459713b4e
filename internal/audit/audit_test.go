package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	l := NewLogger(path)
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, l.Write(Event{Actor: "cli", Action: ActionRun, Resource: "chains/a.yaml", TraceID: "t1", Tokens: 12}, nil))
	require.NoError(t, l.Write(Event{Actor: "cli", Action: ActionValidate, Resource: "chains/b.yaml"}, errors.New("bad ref")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"ts":"2026-01-02T03:04:05Z","actor":"cli","action":"run","resource":"chains/a.yaml","trace_id":"t1","status":"success","tokens":12}`, lines[0])
	assert.Contains(t, lines[1], `"status":"error"`)
	assert.Contains(t, lines[1], `"error":"bad ref"`)
}

func TestDisabledLogger(t *testing.T) {
	var nilLogger *Logger
	assert.False(t, nilLogger.Enabled())
	assert.NoError(t, nilLogger.Write(Event{}, nil))
	assert.NoError(t, NewLogger("").Write(Event{}, nil))
}

func TestExportJSONLToCSV(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "audit.jsonl")
	out := filepath.Join(dir, "audit.csv")
	l := NewLogger(in)
	require.NoError(t, l.Write(Event{Timestamp: "ts1", Actor: "api", Action: ActionReplay, Resource: "r", Status: "diverged"}, nil))

	require.NoError(t, ExportJSONLToCSV(in, out))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ts,actor,action,resource,trace_id,status,tokens,error\nts1,api,replay,r,,diverged,0,\n", string(b))
}
