package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/your-org/promptchain/pkg/chain"
)

// Divergence describes one difference between two traces. Step 0 refers to
// the trace as a whole.
type Divergence struct {
	Step     int
	Field    string
	Expected string
	Actual   string
}

// Compare walks both traces by step number and returns every difference in
// role, resolved prompt, response and token count, then in the final result.
// An empty list means the runs are equivalent.
func Compare(expected chain.Trace, actual chain.Trace) []Divergence {
	out := make([]Divergence, 0)
	n := len(expected.Steps)
	if len(actual.Steps) > n {
		n = len(actual.Steps)
	}
	for i := 0; i < n; i++ {
		step := i + 1
		if i >= len(expected.Steps) {
			out = append(out, Divergence{Step: step, Field: "missing_expected", Actual: actual.Steps[i].Role})
			continue
		}
		if i >= len(actual.Steps) {
			out = append(out, Divergence{Step: step, Field: "missing_actual", Expected: expected.Steps[i].Role})
			continue
		}
		e, a := expected.Steps[i], actual.Steps[i]
		if e.Role != a.Role {
			out = append(out, Divergence{Step: step, Field: "role", Expected: e.Role, Actual: a.Role})
		}
		if e.Prompt != a.Prompt {
			out = append(out, Divergence{Step: step, Field: "prompt", Expected: e.Prompt, Actual: a.Prompt})
		}
		if eh, ah := ResponseHash(e.Response), ResponseHash(a.Response); eh != ah {
			out = append(out, Divergence{Step: step, Field: "response_hash", Expected: eh, Actual: ah})
		}
		if e.Tokens != a.Tokens {
			out = append(out, Divergence{Step: step, Field: "tokens", Expected: strconv.Itoa(e.Tokens), Actual: strconv.Itoa(a.Tokens)})
		}
	}
	if eh, ah := ResponseHash(expected.FinalResult), ResponseHash(actual.FinalResult); eh != ah {
		out = append(out, Divergence{Field: "final_result", Expected: eh, Actual: ah})
	}
	if expected.TotalTokens != actual.TotalTokens {
		out = append(out, Divergence{Field: "total_tokens", Expected: strconv.Itoa(expected.TotalTokens), Actual: strconv.Itoa(actual.TotalTokens)})
	}
	return out
}

func FormatDivergence(div []Divergence) string {
	if len(div) == 0 {
		return "no divergence detected"
	}
	var b strings.Builder
	b.WriteString("trace divergence detected:\n")
	for _, d := range div {
		where := "trace"
		if d.Step > 0 {
			where = "step=" + strconv.Itoa(d.Step)
		}
		fmt.Fprintf(&b, "- %s field=%s expected=%q actual=%q\n", where, d.Field, clip(d.Expected, 80), clip(d.Actual, 80))
	}
	return b.String()
}

// ResponseHash fingerprints a response by its display form.
func ResponseHash(r chain.Response) string {
	sum := sha256.Sum256([]byte(r.String()))
	return hex.EncodeToString(sum[:8])
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
