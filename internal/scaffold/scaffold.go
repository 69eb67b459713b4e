// Package scaffold writes a starter chain project.
package scaffold

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const chainTemplate = `name: %[1]s
description: Look at one topic from two disciplines, then merge the views.
provider: echo
model: ""
max_tokens: 512
context:
  topic: %[2]s
final_fields: [summary]
retry:
  max_attempts: 2
  backoff: exponential
  base_delay: 250ms
circuit_breaker:
  failure_threshold: 3
  reset_timeout: 30s
steps:
  - role: Musician
    name: music_view
    prompt: "In three sentences, explain {{topic}} using an idea from music."
  - role: Mathematician
    prompt: "In three sentences, explain {{topic}} using an idea from mathematics."
  - role: Editor
    prompt: |
      Combine these two views of {{topic}}.
      Music: {{music_view}}
      Mathematics: {{previous output}}
      Reply only with JSON like {"summary": "...", "shared_idea": "..."}
`

const envTemplate = `# Copy to .env and fill in the providers you use.
PROMPTCHAIN_PROVIDER=echo
PROMPTCHAIN_MODEL=
ANTHROPIC_API_KEY=
OPENAI_API_KEY=
GEMINI_API_KEY=
OLLAMA_BASE_URL=http://localhost:11434
TRACE_DIR=traces
LOG_LEVEL=info
`

// Generate creates a runnable chain project in targetDir. Existing files are
// never overwritten.
func Generate(targetDir string, name string) ([]string, error) {
	if strings.TrimSpace(targetDir) == "" {
		return nil, fmt.Errorf("target directory is empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "sample"
	}

	if err := os.MkdirAll(filepath.Join(targetDir, "chains"), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir chains: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(targetDir, "traces"), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir traces: %w", err)
	}

	chainPath := filepath.Join("chains", name+".yaml")
	files := []struct {
		rel  string
		body string
	}{
		{chainPath, fmt.Sprintf(chainTemplate, name, "entropy")},
		{".env.example", envTemplate},
		{"README.md", fmt.Sprintf("# %s\n\nRun with:\n\n```bash\npromptchain run %s --set topic=\"black holes\"\npromptchain show traces/<file>.json\n```\n", name, chainPath)},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(targetDir, f.rel)
		if err := writeNew(path, f.body); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeNew(path, body string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("refusing to overwrite %q", path)
		}
		return fmt.Errorf("write %q: %w", path, err)
	}
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	return f.Close()
}
