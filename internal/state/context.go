// Package state carries request-scoped run metadata through a context.
package state

import "context"

type contextKey string

const stateKey contextKey = "promptchain_state"

// Snapshot is immutable request-scoped state.
type Snapshot struct {
	RunID    string
	Chain    string
	Actor    string
	Metadata map[string]string
}

func ToContext(ctx context.Context, s Snapshot) context.Context {
	if s.Metadata != nil {
		md := make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			md[k] = v
		}
		s.Metadata = md
	}
	return context.WithValue(ctx, stateKey, s)
}

func FromContext(ctx context.Context) (Snapshot, bool) {
	s, ok := ctx.Value(stateKey).(Snapshot)
	return s, ok
}

// RunID returns the run identifier in ctx, or "".
func RunID(ctx context.Context) string {
	s, _ := FromContext(ctx)
	return s.RunID
}
