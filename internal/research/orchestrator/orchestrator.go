// internal/research/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"research-workers/internal/common/logger"
	"research-workers/internal/common/metrics"
	"research-workers/internal/models"
	"research-workers/internal/research/pro"
)

const tracerName = "research-workers/orchestrator"

var errNoResult = errors.New("pipeline returned no result")

type Router interface {
	Route(ctx context.Context, query string, contextExists, useLLMFallback bool) models.RouterDecision
}

type ContextManager interface {
	ShouldUseContext(query string, turns []models.ConversationTurn) bool
	BuildContext(turns []models.ConversationTurn) string
}

type SimplePipeline interface {
	Run(ctx context.Context, query string) (*models.PipelineResult, error)
}

type ProPipeline interface {
	Run(ctx context.Context, req pro.Request) (*models.PipelineResult, error)
}

// Recorder receives one call per finished run. observability.Observability satisfies it.
type Recorder interface {
	RecordPipelineRun(ctx context.Context, mode string, duration time.Duration)
}

type Config struct {
	UseLLMRouter bool
}

type Orchestrator struct {
	cfg      Config
	router   Router
	context  ContextManager
	simple   SimplePipeline
	pro      ProPipeline
	recorder Recorder
	tracer   trace.Tracer
	logger   logger.Logger
}

func New(cfg Config, router Router, cm ContextManager, simplePipeline SimplePipeline, proPipeline ProPipeline, recorder Recorder, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		router:   router,
		context:  cm,
		simple:   simplePipeline,
		pro:      proPipeline,
		recorder: recorder,
		tracer:   otel.Tracer(tracerName),
		logger:   log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Run never fails. Any fault inside routing or a pipeline, panics included, is
// converted into a result with mode "error".
func (o *Orchestrator) Run(ctx context.Context, query string, priorTurns []models.ConversationTurn) (result *models.PipelineResult) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := o.tracer.Start(ctx, "research.pipeline.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("prior_turns", len(priorTurns)),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("pipeline panicked", map[string]interface{}{
				"runId": runID,
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			})
			result = Failure(query, fmt.Errorf("panic: %v", rec))
		}
		o.finish(ctx, span, start, runID, result)
	}()

	res, err := o.execute(ctx, query, priorTurns)
	if err != nil {
		o.logger.Error("pipeline execution failed", map[string]interface{}{
			"runId": runID,
			"error": err.Error(),
		})
		span.RecordError(err)
		return Failure(query, err)
	}
	return res
}

func (o *Orchestrator) execute(ctx context.Context, query string, turns []models.ConversationTurn) (*models.PipelineResult, error) {
	var convo string
	if o.context.ShouldUseContext(query, turns) {
		convo = o.context.BuildContext(turns)
	}

	routeCtx, routeSpan := o.tracer.Start(ctx, "research.route")
	decision := o.router.Route(routeCtx, query, convo != "", o.cfg.UseLLMRouter)
	routeSpan.SetAttributes(
		attribute.String("mode", string(decision.Mode)),
		attribute.Float64("confidence", decision.Confidence),
		attribute.String("source", string(decision.Source)),
	)
	routeSpan.End()

	ctx, span := o.tracer.Start(ctx, "research."+string(decision.Mode))
	defer span.End()

	var (
		res *models.PipelineResult
		err error
	)
	switch decision.Mode {
	case models.ModeSimple:
		res, err = o.simple.Run(ctx, query)
	case models.ModePro:
		res, err = o.pro.Run(ctx, pro.Request{Query: query, Context: convo, PriorTurns: turns})
	default:
		err = fmt.Errorf("unsupported mode %q", decision.Mode)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if res == nil {
		return nil, errNoResult
	}

	res.Query = query
	res.RouterDecision = decision
	if len(res.Subqueries) == 0 {
		res.Subqueries = []string{query}
	}
	if res.Sources == nil {
		res.Sources = []models.SearchResult{}
	}
	note := fmt.Sprintf("Router: %s (%.2f, %s)", decision.Mode, decision.Confidence, decision.Reason)
	res.ReasoningTrace = append([]string{note}, res.ReasoningTrace...)
	return res, nil
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, start time.Time, runID string, result *models.PipelineResult) {
	elapsed := time.Since(start)
	result.RunID = runID
	result.ResponseTimeSeconds = elapsed.Seconds()

	span.SetAttributes(
		attribute.String("mode", string(result.Mode)),
		attribute.Int("sources", len(result.Sources)),
		attribute.Bool("context_used", result.ContextUsed),
	)
	if result.Mode == models.ModeError {
		span.SetStatus(codes.Error, result.RouterDecision.Reason)
	}

	metrics.PipelineRuns.WithLabelValues(string(result.Mode)).Inc()
	metrics.PipelineDuration.WithLabelValues(string(result.Mode)).Observe(elapsed.Seconds())
	if o.recorder != nil {
		o.recorder.RecordPipelineRun(ctx, string(result.Mode), elapsed)
	}

	o.logger.Info("pipeline finished", map[string]interface{}{
		"runId":       runID,
		"mode":        result.Mode,
		"sources":     len(result.Sources),
		"contextUsed": result.ContextUsed,
		"seconds":     result.ResponseTimeSeconds,
	})
}

// Failure builds the uniform error record returned for a failed run.
func Failure(query string, err error) *models.PipelineResult {
	msg := err.Error()
	return &models.PipelineResult{
		Mode:           models.ModeError,
		Query:          query,
		Answer:         "Pipeline execution failed: " + msg,
		Sources:        []models.SearchResult{},
		ReasoningTrace: []string{"error"},
		Subqueries:     []string{query},
		RouterDecision: models.RouterDecision{
			Mode:       models.ModeError,
			Confidence: 0,
			Reason:     msg,
			Source:     models.SourceFailure,
		},
	}
}
