package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/rpc"
	"github.com/pulseward/pulseward/scorer"
	"github.com/pulseward/pulseward/telemetry"
)

func main() {
	cfg, err := core.NewConfig(core.WithName("anomaly-scorer"), core.WithPort(8082))
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := core.NewLoggerFromEnv(cfg.Service.Name)

	ctx := context.Background()
	tel, err := telemetry.New(ctx, cfg.Service.Name, cfg.Telemetry.Endpoint)
	if err != nil {
		logger.Error("telemetry setup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer tel.Shutdown(ctx)

	// The shared cache is preferred but optional: without it the scorer
	// runs on the per-replica in-process store.
	var primary scorer.BaselineStore
	var dedupe core.KeyValueStore
	redisClient, err := core.NewRedisClient(cfg.Redis.URL, cfg.Redis.Namespace)
	if err != nil {
		logger.Warn("redis unavailable, using in-process baselines only", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		defer redisClient.Close()
		primary = scorer.NewRedisBaselineStore(redisClient, cfg.Scorer.WindowSize, cfg.Scorer.BaselineTTL)
		dedupe = redisClient
	}
	fallback := scorer.NewMemoryBaselineStore(cfg.Scorer.WindowSize, cfg.Scorer.BaselineTTL)
	if dedupe == nil {
		memStore := core.NewMemoryStore()
		defer memStore.Close()
		dedupe = memStore
	}

	store := scorer.NewFailoverBaselineStore(primary, fallback, logger)
	engine := scorer.NewEngine(store, dedupe, cfg.Scorer, logger)

	mux := http.NewServeMux()
	scorer.NewService(engine, logger).Register(mux)
	server := rpc.NewServer(cfg.Service.Name, cfg.Service.Port, mux, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown timed out", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
