// Command physiod runs the physiology propagation reasoner as an HTTP
// service: it loads a knowledge-pack directory, watches it for changes,
// and serves the simulation/comparison/graph-inspection API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lattice-health/physioreason/pkg/api"
	"github.com/lattice-health/physioreason/pkg/config"
	"github.com/lattice-health/physioreason/pkg/health"
	"github.com/lattice-health/physioreason/pkg/logging"
	"github.com/lattice-health/physioreason/pkg/metrics"
	"github.com/lattice-health/physioreason/pkg/watch"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("physiod: config: %v", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	logging.SetDefaultLogger(logger)

	reg := metrics.DefaultRegistry()
	hc := health.NewHealthChecker()

	watcher, err := watch.New(watch.Config{Dir: cfg.PacksDir, Debounce: cfg.WatchDebounce}, logger, reg)
	if err != nil {
		logger.Error("physiod: initial pack load failed", logging.Error(err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		logger.Error("physiod: watch start failed", logging.Error(err))
		os.Exit(1)
	}
	defer watcher.Stop()

	server := api.NewServer(watcher, cfg, logger, reg, hc)

	logger.Info("physiod: starting",
		logging.Int("port", cfg.Port),
		logging.String("packs_dir", cfg.PacksDir),
		logging.Int("nodes", watcher.Graph().NodeCount()),
	)

	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("physiod: server exited with error", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("physiod: shut down cleanly")
}
