// internal/workers/research/run-research-query/handler.go
package runresearchquery

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

const TaskType = "run-research-query"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Orchestrator interface {
	Run(ctx context.Context, query string, priorTurns []models.ConversationTurn) *models.PipelineResult
}

// InputValidator checks raw job variables. pkg/registry.ActivityRegistry satisfies it.
type InputValidator interface {
	ValidateInput(taskType string, input map[string]interface{}) error
}

type Handler struct {
	config       *Config
	orchestrator Orchestrator
	history      models.SessionRepository
	validator    InputValidator
	errors       *errors.ErrorHandler
	logger       Logger
}

// NewHandler builds the worker. history and validator may be nil.
func NewHandler(config *Config, orchestrator Orchestrator, history models.SessionRepository, validator InputValidator, log Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		orchestrator: orchestrator,
		history:      history,
		validator:    validator,
		errors:       errors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return err
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return err
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	return nil
}

func (h *Handler) parseInput(variables string) (*Input, error) {
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
	return &input, nil
}

// Execute runs one research query. An orchestrator result with mode "error" is
// still a successful execution; only invalid input is reported as an error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewQueryValidationFailedError("query is required")
	}

	turns := h.priorTurns(ctx, input)
	result := h.orchestrator.Run(ctx, query, turns)

	output := &Output{PipelineResult: *result, SessionID: input.SessionID}
	if h.config.SaveHistory && h.history != nil && input.SessionID != "" {
		if err := h.history.SaveRun(ctx, input.SessionID, result); err != nil {
			h.logger.Warn("history save failed", map[string]interface{}{
				"sessionId": input.SessionID,
				"runId":     result.RunID,
				"error":     err.Error(),
			})
		} else {
			output.HistorySaved = true
		}
	}

	h.logger.Info("research query completed", map[string]interface{}{
		"mode":        string(result.Mode),
		"runId":       result.RunID,
		"resultCount": len(result.Sources),
		"contextUsed": result.ContextUsed,
	})
	return output, nil
}

// priorTurns prefers turns passed with the job and falls back to stored history.
// A history read failure degrades to no context.
func (h *Handler) priorTurns(ctx context.Context, input *Input) []models.ConversationTurn {
	if len(input.PreviousMessages) > 0 {
		turns := make([]models.ConversationTurn, 0, len(input.PreviousMessages))
		for _, m := range input.PreviousMessages {
			role := models.RoleUser
			if strings.EqualFold(m.Role, string(models.RoleAssistant)) {
				role = models.RoleAssistant
			}
			turns = append(turns, models.ConversationTurn{Role: role, Content: m.Content})
		}
		return turns
	}

	if h.history == nil || input.SessionID == "" || h.config.HistoryLimit <= 0 {
		return nil
	}
	turns, err := h.history.RecentTurns(ctx, input.SessionID, h.config.HistoryLimit)
	if err != nil {
		h.logger.Warn("history lookup failed", map[string]interface{}{
			"sessionId": input.SessionID,
			"error":     err.Error(),
		})
		return nil
	}
	return turns
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
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
	return nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	bpmnErr := h.errors.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
}
