// Package trace persists, compares, replays and exports chain traces.
package trace

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/promptchain/pkg/chain"
)

// Run outcomes stored on a Record.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Record is a stored run: the trace plus the metadata needed to list and
// audit it. A failed run keeps the steps completed before the failure.
type Record struct {
	ID         string      `json:"id"`
	Chain      string      `json:"chain"`
	Provider   string      `json:"provider,omitempty"`
	Model      string      `json:"model,omitempty"`
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	FailedStep int         `json:"failed_step,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	DurationMS int64       `json:"duration_ms"`
	Trace      chain.Trace `json:"trace"`
}

// Summary is the list view of a Record.
type Summary struct {
	ID          string    `json:"id"`
	Chain       string    `json:"chain"`
	Status      string    `json:"status"`
	Steps       int       `json:"steps"`
	TotalTokens int       `json:"total_tokens"`
	StartedAt   time.Time `json:"started_at"`
}

// NewID returns a fresh run identifier.
func NewID() string {
	return uuid.NewString()
}

// NewRecord builds a Record from a run that ran from started to finished.
// err is the run error, if any.
func NewRecord(id, chainName string, tr chain.Trace, started, finished time.Time, err error) Record {
	if id == "" {
		id = NewID()
	}
	rec := Record{
		ID:         id,
		Chain:      chainName,
		Status:     StatusSucceeded,
		StartedAt:  started.UTC(),
		DurationMS: finished.Sub(started).Milliseconds(),
		Trace:      tr,
	}
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		rec.FailedStep = chain.FailedStep(err)
	}
	return rec
}

func (r Record) Summary() Summary {
	return Summary{
		ID:          r.ID,
		Chain:       r.Chain,
		Status:      r.Status,
		Steps:       len(r.Trace.Steps),
		TotalTokens: r.Trace.TotalTokens,
		StartedAt:   r.StartedAt,
	}
}
