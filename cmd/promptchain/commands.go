package main

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/your-org/promptchain/internal/app"
	"github.com/your-org/promptchain/internal/version"
)

var (
	runSets     []string
	runProvider string
	runModel    string
	runOut      string
	runStore    bool
	runJSON     bool

	showRaw   bool
	showWidth int
	showStyle string

	serveAddr string
)

var runCmd = &cobra.Command{
	Use:   "run <chain.yaml>",
	Short: "Execute a chain and record its trace",
	Long: `Loads a chain definition, resolves each step's placeholders, calls the
provider once per step and writes the trace. A failed run still writes the
trace of the steps that completed.`,
	Args: cobra.ExactArgs(1),
	RunE: runChain,
}

var validateCmd = &cobra.Command{
	Use:   "validate <chain.yaml>",
	Short: "Check a chain definition and its placeholders without calling a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := parseSets(runSets)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.ValidateChain(args[0], overrides, cmd.OutOrStdout())
	},
}

var showCmd = &cobra.Command{
	Use:   "show <trace.json|run-id>",
	Short: "Render a trace for reading in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.ShowTrace(cmd.Context(), args[0], app.ShowOptions{Raw: showRaw, Width: showWidth, Style: showStyle}, cmd.OutOrStdout())
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <expected.json> <actual.json>",
	Short: "Report where two traces diverge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.CompareTraces(args[0], args[1], cmd.OutOrStdout())
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <chain.yaml> <trace.json>",
	Short: "Re-run a chain against recorded responses and compare the traces",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := parseSets(runSets)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.ReplayTrace(cmd.Context(), args[0], args[1], overrides, cmd.OutOrStdout())
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <trace.json> <out.csv>",
	Short: "Export a trace as CSV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.ExportTrace(args[0], args[1], cmd.OutOrStdout())
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "audit-export <audit.jsonl> <out.csv>",
	Short: "Convert the JSONL audit log to CSV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.ExportAudit(args[0], args[1], cmd.OutOrStdout())
	},
}

var initCmd = &cobra.Command{
	Use:   "init <dir> [name]",
	Short: "Scaffold a starter chain project",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		return app.ScaffoldProject(args[0], name, cmd.OutOrStdout())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the trace API for the web viewer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.ServerAddr = serveAddr
		}
		a, err := newApp(app.WithActor("api"))
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Serve(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return err
	},
}

func runChain(cmd *cobra.Command, args []string) error {
	overrides, err := parseSets(runSets)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := a.RunChain(cmd.Context(), app.RunRequest{
		ChainPath: args[0],
		Overrides: overrides,
		Provider:  runProvider,
		Model:     runModel,
		OutPath:   runOut,
		Persist:   runStore,
	})
	if report.Record.ID == "" {
		return runErr
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report.Record.Trace); err != nil {
			return err
		}
	} else {
		app.WriteRunSummary(out, report)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "partial trace kept for the steps that completed")
	}
	return runErr
}
