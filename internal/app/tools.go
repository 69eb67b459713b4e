package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/your-org/promptchain/internal/audit"
	"github.com/your-org/promptchain/internal/billing"
	"github.com/your-org/promptchain/internal/config"
	"github.com/your-org/promptchain/internal/render"
	"github.com/your-org/promptchain/internal/scaffold"
	"github.com/your-org/promptchain/internal/trace"
	"github.com/your-org/promptchain/pkg/chain"
)

// ValidateChain loads a chain definition and checks every placeholder
// against its context merged with overrides, without calling a model.
func (a *App) ValidateChain(chainPath string, overrides map[string]any, out io.Writer) (retErr error) {
	defer func() {
		_ = a.audit.Write(audit.Event{Actor: a.actor, Action: audit.ActionValidate, Resource: chainPath}, retErr)
	}()

	def, err := config.LoadChain(chainPath)
	if err != nil {
		return fmt.Errorf("validate chain: %w", err)
	}
	if err := def.CheckPlaceholders(overrides); err != nil {
		return fmt.Errorf("validate chain: %w", err)
	}
	refs := 0
	for _, s := range def.Steps {
		r, err := chain.References(s.Template)
		if err != nil {
			return fmt.Errorf("validate chain: %w", err)
		}
		refs += len(r)
	}
	_, _ = fmt.Fprintf(out, "chain %s is valid: %d step(s), %d placeholder(s)\n", def.Name, len(def.Steps), refs)
	return nil
}

// ReplayTrace re-runs a chain against the responses recorded in a trace and
// reports any divergence.
func (a *App) ReplayTrace(ctx context.Context, chainPath string, tracePath string, overrides map[string]any, out io.Writer) (retErr error) {
	defer func() {
		_ = a.audit.Write(audit.Event{Actor: a.actor, Action: audit.ActionReplay, Resource: tracePath}, retErr)
	}()

	def, err := config.LoadChain(chainPath)
	if err != nil {
		return fmt.Errorf("load chain: %w", err)
	}
	if err := def.CheckPlaceholders(overrides); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	tr, err := trace.LoadFromFile(tracePath)
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}

	div, err := trace.ReplayAndCompare(ctx, tr, def.Vars(overrides), def.Steps, chain.RunOptions{FinalFields: def.FinalFields, Name: def.Name})
	if len(div) > 0 {
		_, _ = fmt.Fprint(out, trace.FormatDivergence(div))
	}
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if len(div) > 0 {
		return fmt.Errorf("replay diverged: %d issue(s)", len(div))
	}
	_, _ = fmt.Fprintf(out, "replay matched recorded outputs for %d step(s)\n", len(tr.Steps))
	return nil
}

// CompareTraces prints the divergence between two trace files.
func CompareTraces(expectedPath string, actualPath string, out io.Writer) error {
	expected, err := trace.LoadFromFile(expectedPath)
	if err != nil {
		return err
	}
	actual, err := trace.LoadFromFile(actualPath)
	if err != nil {
		return err
	}
	div := trace.Compare(expected, actual)
	_, _ = fmt.Fprintln(out, trace.FormatDivergence(div))
	if len(div) > 0 {
		return fmt.Errorf("trace divergence found: %d issue(s)", len(div))
	}
	return nil
}

// ShowOptions controls ShowTrace output.
type ShowOptions struct {
	// Raw prints markdown without terminal styling.
	Raw   bool
	Width int
	Style string
}

// ShowTrace renders a trace for reading in a terminal. ref is a trace file
// or, when no such file exists, the id of a stored run.
func (a *App) ShowTrace(ctx context.Context, ref string, opts ShowOptions, out io.Writer) error {
	tr, err := trace.LoadFromFile(ref)
	if errors.Is(err, fs.ErrNotExist) {
		rec, getErr := a.store.Get(ctx, ref)
		if getErr != nil {
			return errors.Join(err, getErr)
		}
		tr, err = rec.Trace, nil
	}
	if err != nil {
		return err
	}
	var inv *billing.Invoice
	if a.rates.Enabled() {
		i := a.rates.Invoice(tr)
		inv = &i
	}
	md := render.Markdown(tr, inv)
	if opts.Raw {
		_, err = io.WriteString(out, md)
		return err
	}
	styled, err := render.Terminal(md, opts.Width, opts.Style)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, styled)
	return err
}

func ExportTrace(tracePath string, csvPath string, out io.Writer) error {
	if err := trace.ExportCSV(tracePath, csvPath); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "exported %s to %s\n", tracePath, csvPath)
	return nil
}

func ExportAudit(logPath string, csvPath string, out io.Writer) error {
	if err := audit.ExportJSONLToCSV(logPath, csvPath); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "exported %s to %s\n", logPath, csvPath)
	return nil
}

func ScaffoldProject(targetDir string, name string, out io.Writer) error {
	files, err := scaffold.Generate(targetDir, name)
	if err != nil {
		return err
	}
	for _, f := range files {
		_, _ = fmt.Fprintf(out, "created %s\n", f)
	}
	return nil
}
