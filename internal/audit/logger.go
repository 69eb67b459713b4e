// Package audit appends one JSON line per CLI or server action.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Actions recorded in the audit log.
const (
	ActionRun      = "run"
	ActionValidate = "validate"
	ActionReplay   = "replay"
	ActionServe    = "serve"
)

// Event is one audit-log record.
type Event struct {
	Timestamp string `json:"ts"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	TraceID   string `json:"trace_id,omitempty"`
	Status    string `json:"status"`
	Tokens    int    `json:"tokens,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Logger writes JSONL audit records. A Logger with no path is disabled.
type Logger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewLogger(path string) *Logger {
	return &Logger{path: path, now: time.Now}
}

func (l *Logger) Enabled() bool {
	return l != nil && l.path != ""
}

// Write records ev. Timestamp and Status are filled in when empty; a non-nil
// err sets Status to "error".
func (l *Logger) Write(ev Event, err error) error {
	if !l.Enabled() {
		return nil
	}
	if ev.Timestamp == "" {
		ev.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	}
	if err != nil {
		ev.Status = "error"
		ev.Error = err.Error()
	} else if ev.Status == "" {
		ev.Status = "success"
	}
	b, mErr := json.Marshal(ev)
	if mErr != nil {
		return fmt.Errorf("audit marshal: %w", mErr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if mkErr := os.MkdirAll(filepath.Dir(l.path), 0o755); mkErr != nil {
		return fmt.Errorf("audit mkdir: %w", mkErr)
	}
	f, openErr := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if openErr != nil {
		return fmt.Errorf("audit open: %w", openErr)
	}
	defer func() { _ = f.Close() }()

	if _, wErr := f.Write(append(b, '\n')); wErr != nil {
		return fmt.Errorf("audit write: %w", wErr)
	}
	return nil
}
