package trace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/your-org/promptchain/pkg/chain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SaveToFile writes tr in the display layout the web UI reads.
func SaveToFile(path string, tr chain.Trace) error {
	return writeJSON(path, tr)
}

// SaveRecord writes a full Record, metadata included.
func SaveRecord(path string, rec Record) error {
	return writeJSON(path, rec)
}

// LoadFromFile reads a trace file. Both a bare trace and a Record envelope
// are accepted.
func LoadFromFile(path string) (chain.Trace, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return chain.Trace{}, fmt.Errorf("trace: read %q: %w", path, err)
	}
	tr, err := Decode(b)
	if err != nil {
		return chain.Trace{}, fmt.Errorf("trace: unmarshal %q: %w", path, err)
	}
	return tr, nil
}

// Decode parses trace JSON, unwrapping a Record envelope when present.
func Decode(b []byte) (chain.Trace, error) {
	if json.Get(b, "trace").ValueType() == jsoniter.ObjectValue {
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return chain.Trace{}, err
		}
		return rec.Trace, nil
	}
	var tr chain.Trace
	if err := json.Unmarshal(b, &tr); err != nil {
		return chain.Trace{}, err
	}
	return tr, nil
}

// FileName is the default file name for a run's trace.
func FileName(rec Record) string {
	id := rec.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s.json", rec.Chain, rec.StartedAt.UTC().Format("20060102T150405Z"), id)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("trace: marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("trace: mkdir %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("trace: write %q: %w", path, err)
	}
	return nil
}

// DecodeRecord parses a Record envelope.
func DecodeRecord(b []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, err
	}
	if rec.ID == "" {
		return Record{}, errors.New("record has no id")
	}
	return rec, nil
}
