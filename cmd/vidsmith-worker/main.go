package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"time"

	"github.com/ternarybob/vidsmith/internal/app"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/server"
)

type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Vidsmith worker version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("vidsmith.toml"); err == nil {
			configFiles = append(configFiles, "vidsmith.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	application, err := app.NewWorker(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize worker")
	}
	defer application.Close()

	application.Runtime.Start(context.Background())

	probe := server.NewProbe(application)
	go func() {
		if err := probe.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Probe server failed")
		}
	}()

	logger.Info().
		Int("concurrency", config.Worker.Concurrency).
		Int("probe_port", config.Worker.ProbePort).
		Msg("Worker ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received, draining in-flight tasks")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := probe.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Probe server shutdown failed")
	}

	application.Runtime.Stop()
	logger.Info().Msg("Worker stopped")
}
