package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulseward/pulseward/broker"
	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/gateway"
	"github.com/pulseward/pulseward/registry"
	"github.com/pulseward/pulseward/rpc"
	"github.com/pulseward/pulseward/telemetry"
)

func main() {
	cfg, err := core.NewConfig(core.WithName("gateway"), core.WithPort(8080))
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

	redisClient, err := core.NewRedisClient(cfg.Redis.URL, cfg.Redis.Namespace)
	if err != nil {
		logger.Error("redis connection failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer redisClient.Close()

	producer := broker.NewProducer(redisClient, cfg.Broker, logger)

	var reg registry.Lookup
	if cfg.Gateway.VerifyDevices {
		reg = registry.NewClient(cfg.RPC, logger)
	}

	svc := gateway.NewService(producer, reg, cfg.Gateway, logger)

	mux := http.NewServeMux()
	svc.Register(mux)
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
