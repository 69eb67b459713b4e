package chain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder grammar:
//
//	{{key}} or {key}                      context value
//	{{output[N]}}                         output of step N (0-based); negative N counts back
//	{{output[-1]}} or {{previous output}} output of the immediately preceding step
//	{{output[N].field.sub}}               field of a structured output
//
// A single-brace group that is not a valid reference is literal text. A
// double-brace group must be a valid reference.
var (
	placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}|\{([^{}\s][^{}]*)\}`)
	outputRefPattern   = regexp.MustCompile(`^output\[(-?\d+)\]((?:\.[A-Za-z_][A-Za-z0-9_]*)*)$`)
	identPattern       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

const previousOutput = "previous output"

type ref struct {
	raw    string
	key    string
	output bool
	index  int
	path   []string
}

type segment struct {
	literal string
	ref     *ref
}

func parseRef(s string) (*ref, bool) {
	s = strings.TrimSpace(s)
	if s == previousOutput {
		return &ref{raw: s, output: true, index: -1}, true
	}
	if m := outputRefPattern.FindStringSubmatch(s); m != nil {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, false
		}
		var path []string
		if m[2] != "" {
			path = strings.Split(strings.TrimPrefix(m[2], "."), ".")
		}
		return &ref{raw: s, output: true, index: idx, path: path}, true
	}
	if identPattern.MatchString(s) {
		return &ref{raw: s, key: s}, true
	}
	return nil, false
}

// compileTemplate splits a template into literal and reference segments.
func compileTemplate(step int, tmpl string) ([]segment, error) {
	var segs []segment
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(tmpl, -1) {
		double := m[2] >= 0
		var body string
		if double {
			body = tmpl[m[2]:m[3]]
		} else {
			body = tmpl[m[4]:m[5]]
		}
		r, ok := parseRef(body)
		if !ok {
			if double {
				return nil, &TemplateResolutionError{Step: step, Ref: strings.TrimSpace(body), Reason: "malformed placeholder"}
			}
			continue
		}
		if m[0] > last {
			segs = append(segs, segment{literal: tmpl[last:m[0]]})
		}
		segs = append(segs, segment{ref: r})
		last = m[1]
	}
	if last < len(tmpl) {
		segs = append(segs, segment{literal: tmpl[last:]})
	}
	return segs, nil
}

// References lists the placeholder references in a template, in order.
func References(tmpl string) ([]string, error) {
	segs, err := compileTemplate(0, tmpl)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range segs {
		if s.ref != nil {
			out = append(out, s.ref.raw)
		}
	}
	return out, nil
}

// scope is the per-run context: caller values, named outputs and the
// append-only output list.
type scope struct {
	vars    Vars
	outputs []Response
}

func newScope(vars Vars, prompts []Prompt) (*scope, error) {
	sc := &scope{vars: make(Vars, len(vars)+len(prompts))}
	for k, v := range vars {
		if isReservedKey(k) {
			return nil, fmt.Errorf("%w: %q", ErrReservedKey, k)
		}
		sc.vars[k] = v
	}
	seen := make(map[string]int, len(prompts))
	for i, p := range prompts {
		if p.Name == "" {
			continue
		}
		if !identPattern.MatchString(p.Name) || isReservedKey(p.Name) {
			return nil, fmt.Errorf("%w: step %d name %q", ErrInvalidName, i+1, p.Name)
		}
		if _, exists := sc.vars[p.Name]; exists {
			return nil, fmt.Errorf("%w: step %d name %q shadows a context value", ErrDuplicateName, i+1, p.Name)
		}
		if prev, exists := seen[p.Name]; exists {
			return nil, fmt.Errorf("%w: steps %d and %d are both named %q", ErrDuplicateName, prev, i+1, p.Name)
		}
		seen[p.Name] = i + 1
	}
	return sc, nil
}

func isReservedKey(k string) bool {
	return k == "output" || k == previousOutput || strings.HasPrefix(k, "output[")
}

// resolve substitutes every reference in one left-to-right pass. step is 1-based.
func (sc *scope) resolve(step int, tmpl string) (string, error) {
	segs, err := compileTemplate(step, tmpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(tmpl))
	for _, s := range segs {
		if s.ref == nil {
			b.WriteString(s.literal)
			continue
		}
		v, err := sc.lookup(step, s.ref)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

func (sc *scope) lookup(step int, r *ref) (string, error) {
	if !r.output {
		v, ok := sc.vars[r.key]
		if !ok {
			return "", &TemplateResolutionError{Step: step, Ref: r.raw, Reason: fmt.Sprintf("context key %q not found", r.key)}
		}
		return displayValue(v), nil
	}

	idx, err := outputIndex(step, len(sc.outputs), r)
	if err != nil {
		return "", err
	}
	out := sc.outputs[idx]
	if len(r.path) == 0 {
		return out.String(), nil
	}
	v, ok := out.Field(r.path...)
	if !ok {
		return "", &TemplateResolutionError{Step: step, Ref: r.raw, Reason: fmt.Sprintf("field %q not found in output[%d]", strings.Join(r.path, "."), idx)}
	}
	return displayValue(v), nil
}

// outputIndex maps a reference to an absolute index into n completed outputs.
func outputIndex(step, n int, r *ref) (int, error) {
	idx := r.index
	if idx < 0 {
		idx = n + idx
	}
	if idx < 0 || idx >= n {
		reason := fmt.Sprintf("output index %d out of range (%d completed step(s))", r.index, n)
		if r.index >= n {
			reason = fmt.Sprintf("output[%d] refers to a step that has not executed yet", r.index)
		}
		return 0, &TemplateResolutionError{Step: step, Ref: r.raw, Reason: reason}
	}
	return idx, nil
}

func (sc *scope) store(name string, resp Response) {
	sc.outputs = append(sc.outputs, resp)
	if name != "" {
		sc.vars[name] = resp
	}
}

// Validate checks every reference of a chain without invoking a model. Field
// paths into structured outputs cannot be checked statically and are skipped.
func Validate(vars Vars, prompts []Prompt) error {
	if len(prompts) == 0 {
		return ErrEmptyChain
	}
	sc, err := newScope(vars, prompts)
	if err != nil {
		return err
	}
	for i, p := range prompts {
		step := i + 1
		segs, err := compileTemplate(step, p.Template)
		if err != nil {
			return err
		}
		for _, s := range segs {
			if s.ref == nil {
				continue
			}
			if s.ref.output {
				if _, err := outputIndex(step, i, s.ref); err != nil {
					return err
				}
				continue
			}
			if _, ok := sc.vars[s.ref.key]; !ok {
				return &TemplateResolutionError{Step: step, Ref: s.ref.raw, Reason: fmt.Sprintf("context key %q not found", s.ref.key)}
			}
		}
		if p.Name != "" {
			sc.vars[p.Name] = Response{}
		}
	}
	return nil
}
