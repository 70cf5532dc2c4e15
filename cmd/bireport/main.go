package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"bicli/internal/config"
	"bicli/internal/infrastructure"
	"bicli/internal/pipeline"
	"bicli/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional, env vars with prefix BI_ override)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger := infrastructure.MustNewLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting", slog.String("version", contracts.GetVersionString()))

	if err := pipeline.New(cfg, logger).Run(context.Background()); err != nil {
		logger.Error("pipeline failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
