// Package render turns traces into markdown and styled terminal output.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/your-org/promptchain/internal/billing"
	"github.com/your-org/promptchain/pkg/chain"
)

// Markdown lays a trace out the way the web viewer does: one section per
// step with its role, prompt, response and token count, then the final result.
func Markdown(tr chain.Trace, inv *billing.Invoice) string {
	var b strings.Builder
	title := tr.Name
	if title == "" {
		title = "Chain trace"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	for _, s := range tr.Steps {
		fmt.Fprintf(&b, "## Step %d: %s\n\n", s.StepNumber, s.Role)
		b.WriteString("**Prompt**\n\n")
		b.WriteString(quote(s.Prompt))
		b.WriteString("\n\n**Response**\n\n")
		b.WriteString(response(s.Response))
		fmt.Fprintf(&b, "\n\n_%d tokens_\n\n", s.Tokens)
	}

	b.WriteString("## Final result\n\n")
	b.WriteString(response(tr.FinalResult))
	fmt.Fprintf(&b, "\n\n**Total tokens:** %d\n", tr.TotalTokens)
	if inv != nil {
		fmt.Fprintf(&b, "\n**Estimated cost:** %s\n", inv)
	}
	if len(tr.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range tr.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

// Terminal renders markdown for a terminal. An empty style picks one from
// the terminal background.
func Terminal(markdown string, width int, style string) (string, error) {
	if width <= 0 {
		width = 80
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return out, nil
}

func quote(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func response(r chain.Response) string {
	if !r.IsStructured() {
		return r.String()
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(r.String()), "", "  "); err != nil {
		return "```json\n" + r.String() + "\n```"
	}
	return "```json\n" + buf.String() + "\n```"
}
