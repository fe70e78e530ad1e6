// internal/workers/research/classify-query/handler.go
package classifyquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"research-workers/internal/common/errors"
	"research-workers/internal/common/metrics"
	"research-workers/internal/models"
)

const TaskType = "classify-query"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Router interface {
	Route(ctx context.Context, query string, contextExists, useLLMFallback bool) models.RouterDecision
}

type InputValidator interface {
	ValidateInput(taskType string, input map[string]interface{}) error
}

type Handler struct {
	config    *Config
	router    Router
	validator InputValidator
	errors    *errors.ErrorHandler
	logger    Logger
}

func NewHandler(config *Config, router Router, validator InputValidator, log Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		router:    router,
		validator: validator,
		errors:    errors.NewErrorHandler(l),
		logger:    l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.process(ctx, job.Variables)
	if err != nil {
		bpmnErr := h.errors.HandleJobError(ctx, client, job, err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
		return err
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return fmt.Errorf("complete job %d: %w", job.Key, err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return fmt.Errorf("complete job %d: %w", job.Key, err)
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	return nil
}

func (h *Handler) process(ctx context.Context, variables string) (*Output, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	if h.validator != nil {
		if err := h.validator.ValidateInput(TaskType, raw); err != nil {
			return nil, errors.NewQueryValidationFailedError(err.Error())
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	return h.Execute(ctx, &input)
}

// Execute routes a single query. Routing itself never fails.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewQueryValidationFailedError("query is required")
	}

	useLLM := h.config.UseLLMRouter
	if input.UseLLM != nil {
		useLLM = *input.UseLLM
	}

	decision := h.router.Route(ctx, query, input.ContextExists, useLLM)
	h.logger.Info("query classified", map[string]interface{}{
		"mode":       string(decision.Mode),
		"confidence": decision.Confidence,
		"source":     string(decision.Source),
	})
	return &Output{RouterDecision: decision, Query: query}, nil
}
