// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"research-workers/internal/bootstrap"
	"research-workers/internal/common/camunda"
	"research-workers/internal/common/config"
	"research-workers/internal/common/logger"
	"research-workers/internal/common/observability"

	cq "research-workers/internal/workers/research/classify-query"
	rrh "research-workers/internal/workers/research/record-research-history"
	rrq "research-workers/internal/workers/research/run-research-query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("app", cfg.App.Name), zap.String("version", cfg.App.Version))

	if err := config.ValidateWorkers(cfg); err != nil {
		zapLog.Fatal("invalid worker configuration", zap.Error(err))
	}

	shutdownTracing, err := observability.InitTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Research stack: providers, stores, router and pipelines ---
	stack, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		ConnectAttempts: 15,
		ConnectDelay:    2 * time.Second,
		Recorder:        obs,
	}, log)
	if err != nil {
		zapLog.Fatal("research stack init failed", zap.Error(err))
	}
	defer stack.Close()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: 10,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	var validator rrq.InputValidator
	if stack.Registry != nil {
		validator = stack.Registry
	}

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	start := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !config.IsWorkerEnabled(cfg, taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		if !stack.Registry.Runnable(taskType) {
			zapLog.Info("activity not implemented in registry, skipping", zap.String("taskType", taskType))
			return
		}
		w := camunda.NewWorker(
			zeebe.GetClient(),
			taskType,
			wcfg.MaxJobsActive,
			config.GetDuration(wcfg.Timeout),
			&recordedHandler{next: handler, obs: obs},
			zapLog,
		)
		w.Start()
		workers = append(workers, w)
	}

	runCfg := rrq.LoadConfig()
	runCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, rrq.TaskType).Timeout)
	runCfg.HistoryLimit = cfg.Research.MaxContextMessages
	start(rrq.TaskType, rrq.NewHandler(runCfg, stack.Orchestrator, stack.SessionRepository(), validator, &runResearchLoggerAdapter{log}))

	classifyCfg := cq.LoadConfig()
	classifyCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, cq.TaskType).Timeout)
	classifyCfg.UseLLMRouter = cfg.Research.LLMRouterEnabled()
	start(cq.TaskType, cq.NewHandler(classifyCfg, stack.Router, validator, &classifyLoggerAdapter{log}))

	if stack.History != nil {
		recordCfg := rrh.LoadConfig()
		recordCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, rrh.TaskType).Timeout)
		start(rrh.TaskType, rrh.NewHandler(recordCfg, stack.History, validator, &recordHistoryLoggerAdapter{log}))
	} else {
		zapLog.Info("history store disabled, not registering worker", zap.String("taskType", rrh.TaskType))
	}

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		if err := stack.Ready(r.Context()); err != nil {
			zapLog.Warn("backing store not ready", zap.Error(err))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":8080", Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLog.Error("Error flushing traces", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// recordedHandler reports job counts and durations through OpenTelemetry.
type recordedHandler struct {
	next camunda.JobHandler
	obs  *observability.Observability
}

func (h *recordedHandler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	err := h.next.Handle(client, job)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	ctx := context.Background()
	h.obs.RecordJobProcessed(ctx, status)
	h.obs.RecordJobDuration(ctx, time.Since(start), status)
	return err
}

// Logger adapters for workers that have their own Logger interfaces
type runResearchLoggerAdapter struct {
	logger.Logger
}

func (a *runResearchLoggerAdapter) With(fields map[string]interface{}) rrq.Logger {
	return &runResearchLoggerAdapter{a.Logger.With(fields)}
}

type classifyLoggerAdapter struct {
	logger.Logger
}

func (a *classifyLoggerAdapter) With(fields map[string]interface{}) cq.Logger {
	return &classifyLoggerAdapter{a.Logger.With(fields)}
}

type recordHistoryLoggerAdapter struct {
	logger.Logger
}

func (a *recordHistoryLoggerAdapter) With(fields map[string]interface{}) rrh.Logger {
	return &recordHistoryLoggerAdapter{a.Logger.With(fields)}
}
