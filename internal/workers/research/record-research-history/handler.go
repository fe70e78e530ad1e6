// internal/workers/research/record-research-history/handler.go
package recordresearchhistory

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
	"research-workers/internal/history"
	"research-workers/internal/models"
)

const TaskType = "record-research-history"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type InputValidator interface {
	ValidateInput(taskType string, input map[string]interface{}) error
}

type Handler struct {
	config    *Config
	store     models.SessionRepository
	validator InputValidator
	errors    *errors.ErrorHandler
	logger    Logger
}

// NewHandler builds the worker. A nil store makes every job fail with HISTORY_WRITE_FAILED.
func NewHandler(config *Config, store models.SessionRepository, validator InputValidator, log Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		store:     store,
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

// Execute stores a result produced by an earlier run-research-query job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Result == nil || strings.TrimSpace(input.Result.Query) == "" {
		return nil, errors.NewQueryValidationFailedError("result with a query is required")
	}
	if h.store == nil {
		return nil, errors.NewHistoryWriteFailedError(history.ErrHistoryUnavailable)
	}

	if err := h.store.SaveRun(ctx, input.SessionID, input.Result); err != nil {
		return nil, errors.NewHistoryWriteFailedError(err)
	}

	h.logger.Info("research result recorded", map[string]interface{}{
		"sessionId": input.SessionID,
		"runId":     input.Result.RunID,
		"mode":      string(input.Result.Mode),
	})
	return &Output{Recorded: true, SessionID: input.SessionID}, nil
}
