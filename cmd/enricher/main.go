package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulseward/pulseward/broker"
	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/enricher"
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/registry"
	"github.com/pulseward/pulseward/rpc"
	"github.com/pulseward/pulseward/telemetry"
)

func main() {
	cfg, err := core.NewConfig(core.WithName("enricher"), core.WithPort(8084))
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
	stage := enricher.New(registry.NewClient(cfg.RPC, logger), producer, logger)

	host, _ := os.Hostname()
	consumer := broker.NewConsumer(redisClient, cfg.Broker,
		event.TopicNormalized, "enricher", cfg.Service.Name+"-"+host, stage.Handle, logger)
	if err := consumer.Start(ctx); err != nil {
		logger.Error("consumer start failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	server := rpc.NewServer(cfg.Service.Name, cfg.Service.Port, http.NewServeMux(), logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("health server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Service.ShutdownTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)
	if err := consumer.Stop(cfg.Service.ShutdownTimeout); err != nil {
		logger.Error("drain failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
