package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/your-org/promptchain/internal/app"
	"github.com/your-org/promptchain/internal/config"
	"github.com/your-org/promptchain/internal/logging"
)

var (
	// Global flags
	verbose bool
	envFile string

	cfg    config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "promptchain",
	Short: "Run prompt chains against LLMs and inspect their traces",
	Long: `promptchain sends an ordered list of prompt templates to a model one at a
time. Each step can reference the context and earlier outputs with
{{key}}, {{output[N]}} and {{previous output}} placeholders. Every run is
recorded as a trace of prompts, responses and token counts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.LogFormat)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment from this file when it exists")

	runCmd.Flags().StringArrayVar(&runSets, "set", nil, "Override a context value (key=value, repeatable)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Provider name (overrides chain file and PROMPTCHAIN_PROVIDER)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model handle passed to the provider")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Trace output file (default TRACE_DIR/<chain>-<time>-<id>.json, '-' to skip)")
	runCmd.Flags().BoolVar(&runStore, "store", false, "Also save the run to the trace store")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the trace as JSON instead of a summary")

	replayCmd.Flags().StringArrayVar(&runSets, "set", nil, "Override a context value (key=value, repeatable)")
	validateCmd.Flags().StringArrayVar(&runSets, "set", nil, "Supply a context value to check against (key=value, repeatable)")

	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print markdown without terminal styling")
	showCmd.Flags().IntVar(&showWidth, "width", 100, "Word wrap width")
	showCmd.Flags().StringVar(&showStyle, "style", "", "Glamour style (dark, light, notty, or a JSON file)")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default SERVER_ADDR)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(auditExportCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

// newApp builds the application from the loaded config.
func newApp(opts ...app.Option) (*app.App, error) {
	return app.New(cfg, logger, opts...)
}

// parseSets turns key=value flags into context overrides. Values are read as
// YAML scalars or flow collections, so --set n=3 yields an int and
// --set tags=[a,b] a list.
func parseSets(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want key=value", s)
		}
		var parsed any
		if err := yaml.Unmarshal([]byte(v), &parsed); err != nil || parsed == nil {
			parsed = v
		}
		if _, isMap := parsed.(map[string]any); isMap {
			parsed = v
		}
		out[k] = parsed
	}
	return out, nil
}
