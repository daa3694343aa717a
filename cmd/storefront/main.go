package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/noah-isme/nitro-storefront/internal/cli"
	"github.com/noah-isme/nitro-storefront/internal/config"
	"github.com/noah-isme/nitro-storefront/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	logger := obs.NewLoggerTo(os.Stderr, "console", cfg.Obs.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCommand(&cli.Env{Config: cfg, Logger: logger, Out: os.Stdout})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
