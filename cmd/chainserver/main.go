package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/your-org/promptchain/internal/app"
	"github.com/your-org/promptchain/internal/config"
	"github.com/your-org/promptchain/internal/logging"
	"github.com/your-org/promptchain/internal/version"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-v" || os.Args[1] == "--version" || os.Args[1] == "version") {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "chainserver config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chainserver logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg, logger, app.WithActor("api"))
	if err != nil {
		logger.Fatal("chainserver init failed", zap.Error(err))
	}
	defer a.Close()

	logger.Info("chainserver starting", zap.String("version", version.Version), zap.String("chains_dir", cfg.ChainsDir))
	if err := a.Serve(ctx); err != nil {
		logger.Error("chainserver stopped", zap.Error(err))
		cancel()
		_ = a.Close()
		os.Exit(1)
	}
}
