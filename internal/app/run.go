package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/your-org/promptchain/internal/audit"
	"github.com/your-org/promptchain/internal/billing"
	"github.com/your-org/promptchain/internal/config"
	"github.com/your-org/promptchain/internal/logging"
	"github.com/your-org/promptchain/internal/metrics"
	"github.com/your-org/promptchain/internal/retry"
	"github.com/your-org/promptchain/internal/state"
	"github.com/your-org/promptchain/internal/trace"
	"github.com/your-org/promptchain/pkg/adapters"
	"github.com/your-org/promptchain/pkg/chain"
)

// RunRequest describes one chain execution.
type RunRequest struct {
	ChainPath string
	// Overrides are merged over the chain's context.
	Overrides map[string]any
	// Provider and Model override the chain file and the environment.
	Provider string
	Model    string
	// OutPath receives the trace file. Empty means TRACE_DIR/<chain>-<time>.json;
	// "-" disables the file.
	OutPath string
	// Persist saves the run record to the store.
	Persist bool
}

// RunReport captures the outcome of one chain execution. On failure it holds
// the partial trace.
type RunReport struct {
	Record    trace.Record
	Result    chain.Result
	Invoice   *billing.Invoice
	TracePath string
}

// RunChain loads a chain definition, runs it against the selected provider
// and persists the trace, including the partial trace of a failed run.
func (a *App) RunChain(ctx context.Context, req RunRequest) (report RunReport, retErr error) {
	defer func() {
		_ = a.audit.Write(audit.Event{
			Actor:    a.actor,
			Action:   audit.ActionRun,
			Resource: req.ChainPath,
			TraceID:  report.Record.ID,
			Tokens:   report.Record.Trace.TotalTokens,
		}, retErr)
	}()

	def, err := config.LoadChain(req.ChainPath)
	if err != nil {
		return RunReport{}, fmt.Errorf("load chain: %w", err)
	}
	if err := def.CheckPlaceholders(req.Overrides); err != nil {
		return RunReport{}, err
	}
	return a.run(ctx, def, req)
}

func (a *App) run(ctx context.Context, def config.ChainFile, req RunRequest) (RunReport, error) {
	providerName := firstNonEmpty(req.Provider, def.Provider, a.cfg.Provider)
	model := firstNonEmpty(req.Model, def.Model, a.cfg.Model)

	invoker, err := a.invoker(def, providerName)
	if err != nil {
		return RunReport{}, err
	}

	id := trace.NewID()
	started := a.now()
	ctx = state.ToContext(ctx, state.Snapshot{RunID: id, Chain: def.Name, Actor: a.actor})
	ctx, span := trace.StartRunSpan(ctx, a.tracer, def.Name, id)
	defer span.End()

	log := a.logger.With(zap.String("chain", def.Name), zap.String("trace_id", id), zap.String("provider", providerName))
	log.Info("chain started", zap.Int("steps", len(def.Steps)), zap.String("model", model))

	res, runErr := chain.Run(ctx, def.Vars(req.Overrides), model, invoker, def.Steps, chain.RunOptions{
		IncludeTrace: true,
		FinalFields:  def.FinalFields,
		Name:         def.Name,
		Observer: chain.MultiObserver{
			logging.Observer{Logger: log},
			metrics.Observer{Recorder: a.recorder},
			trace.SpanObserver{Tracer: a.tracer},
		},
	})

	var tr chain.Trace
	switch partial, ok := chain.PartialTrace(runErr); {
	case runErr == nil:
		tr = *res.Trace
	case ok:
		tr = *partial
	default:
		return RunReport{}, runErr
	}

	rec := trace.NewRecord(id, def.Name, tr, started, a.now(), runErr)
	rec.Provider, rec.Model = providerName, model
	report := RunReport{Record: rec, Result: res}
	if a.rates.Enabled() {
		inv := a.rates.Invoice(tr)
		report.Invoice = &inv
	}

	if err := a.persist(ctx, &report, req); err != nil {
		return report, errors.Join(runErr, err)
	}

	if runErr != nil {
		log.Warn("chain failed", zap.Int("completed_steps", len(tr.Steps)), zap.Error(runErr))
		return report, fmt.Errorf("run chain %q: %w", def.Name, runErr)
	}
	log.Info("chain finished", zap.Int("total_tokens", tr.TotalTokens), zap.Int64("duration_ms", rec.DurationMS))
	return report, nil
}

func (a *App) invoker(def config.ChainFile, providerName string) (chain.Invoker, error) {
	p, err := a.providers.Resolve(providerName)
	if err != nil {
		return nil, err
	}
	rp, err := def.RetryPolicy()
	if err != nil {
		return nil, err
	}
	bp, err := def.BreakerPolicy()
	if err != nil {
		return nil, err
	}
	defaults := adapters.GenerateRequest{System: def.System, MaxTokens: def.MaxTokens}
	if def.Temperature != nil {
		defaults.Temperature = *def.Temperature
	}
	return adapters.NewInvoker(retry.Wrap(p, rp, a.breaker, bp, a.recorder), defaults), nil
}

func (a *App) persist(ctx context.Context, report *RunReport, req RunRequest) error {
	if req.OutPath != "-" {
		path := req.OutPath
		if path == "" {
			path = filepath.Join(a.cfg.TraceDir, trace.FileName(report.Record))
		}
		if err := trace.SaveToFile(path, report.Record.Trace); err != nil {
			return fmt.Errorf("persist trace: %w", err)
		}
		report.TracePath = path
	}
	if req.Persist {
		if err := a.store.Save(ctx, report.Record); err != nil {
			return fmt.Errorf("store trace: %w", err)
		}
	}
	return nil
}

// WriteRunSummary prints a short human-readable account of a run.
func WriteRunSummary(out io.Writer, report RunReport) {
	rec := report.Record
	_, _ = fmt.Fprintf(out, "chain %s %s: %d step(s), %d token(s), provider=%s trace_id=%s\n",
		rec.Chain, rec.Status, len(rec.Trace.Steps), rec.Trace.TotalTokens, rec.Provider, rec.ID)
	for _, s := range rec.Trace.Steps {
		_, _ = fmt.Fprintf(out, "- step %d (%s): %d token(s)\n", s.StepNumber, s.Role, s.Tokens)
	}
	if rec.Error != "" {
		_, _ = fmt.Fprintf(out, "error at step %d: %s\n", rec.FailedStep, rec.Error)
	}
	if len(rec.Trace.Steps) > 0 {
		_, _ = fmt.Fprintf(out, "final result:\n%s\n", rec.Trace.FinalResult.String())
	}
	if report.Invoice != nil {
		_, _ = fmt.Fprintf(out, "estimated cost: %s\n", report.Invoice)
	}
	if report.TracePath != "" {
		_, _ = fmt.Fprintf(out, "trace written to %s\n", report.TracePath)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
