// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/common/metrics"
	"change-order-generator/internal/common/observability"
	"change-order-generator/internal/models"
	extractcontent "change-order-generator/internal/workers/change-order/extract-content"
	renderspreadsheet "change-order-generator/internal/workers/change-order/render-spreadsheet"
	storeartifact "change-order-generator/internal/workers/change-order/store-artifact"
	synthesizebreakdown "change-order-generator/internal/workers/change-order/synthesize-breakdown"
	validatebreakdown "change-order-generator/internal/workers/change-order/validate-breakdown"
)

type Extractor interface {
	Execute(ctx context.Context, req models.GenerationRequest) (*models.NormalizedInput, error)
}

type Synthesizer interface {
	Execute(ctx context.Context, input *models.NormalizedInput) (models.RawBreakdown, error)
}

type Validator interface {
	Execute(ctx context.Context, raw models.RawBreakdown) (*validatebreakdown.Result, error)
}

type Renderer interface {
	Execute(ctx context.Context, b *models.CostBreakdown) ([]byte, error)
}

type Store interface {
	Execute(ctx context.Context, content []byte) (*models.GeneratedArtifact, error)
	Health(ctx context.Context) error
}

// Stages bundles one implementation per pipeline step.
type Stages struct {
	Extractor   Extractor
	Synthesizer Synthesizer
	Validator   Validator
	Renderer    Renderer
	Store       Store
}

// metricStage maps run states to the task names used in metrics and logs.
var metricStage = map[Stage]string{
	StageExtracting:   extractcontent.TaskType,
	StageSynthesizing: synthesizebreakdown.TaskType,
	StageValidating:   validatebreakdown.TaskType,
	StageRendering:    renderspreadsheet.TaskType,
	StageStoring:      storeartifact.TaskType,
}

// TransitionFunc observes every state change of a run.
type TransitionFunc func(runID string, from, to Stage)

type Pipeline struct {
	stages       Stages
	logger       logger.Logger
	obs          *observability.Observability
	onTransition TransitionFunc
}

type Option func(*Pipeline)

func WithObservability(obs *observability.Observability) Option {
	return func(p *Pipeline) { p.obs = obs }
}

func WithTransitionHook(fn TransitionFunc) Option {
	return func(p *Pipeline) { p.onTransition = fn }
}

func New(stages Stages, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: stages,
		logger: log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is a completed run.
type Result struct {
	RunID     string
	Artifact  *models.GeneratedArtifact
	Breakdown *models.CostBreakdown
	Warnings  []validatebreakdown.Warning
}

// run is the mutable state of one execution; never shared across requests.
type run struct {
	id     string
	source models.Source
	state  Stage
	logger logger.Logger
}

// Run executes the stages strictly in order. The first failure ends the run
// with a *PipelineError; nothing is retried.
func (p *Pipeline) Run(ctx context.Context, req models.GenerationRequest) (*Result, error) {
	if req == nil {
		return nil, &PipelineError{Stage: StageReceived, Cause: apperrors.NewInvalidInputError("request is empty")}
	}

	r := &run{id: uuid.NewString(), source: req.Source(), state: StageReceived}
	r.logger = p.logger.WithFields(map[string]interface{}{"runId": r.id, "source": string(r.source)})

	ctx, span := p.obs.StartSpan(ctx, "change_order.generate",
		attribute.String("run.id", r.id),
		attribute.String("run.source", string(r.source)),
	)
	defer span.End()

	metrics.RunsActive.WithLabelValues(string(r.source)).Inc()
	defer metrics.RunsActive.WithLabelValues(string(r.source)).Dec()

	started := time.Now()
	r.logger.Info("run received", nil)

	result, err := p.execute(ctx, r, req)

	status := "success"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.obs.RecordRun(ctx, string(r.source), status)
	p.obs.RecordRunDuration(ctx, time.Since(started), status)

	if err != nil {
		return nil, err
	}
	r.logger.Info("run completed", map[string]interface{}{
		"filename":   result.Artifact.Filename,
		"durationMs": time.Since(started).Milliseconds(),
	})
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run, req models.GenerationRequest) (*Result, error) {
	var (
		input     *models.NormalizedInput
		raw       models.RawBreakdown
		validated *validatebreakdown.Result
		content   []byte
		artifact  *models.GeneratedArtifact
	)

	steps := []struct {
		stage Stage
		fn    func(ctx context.Context) error
	}{
		{StageExtracting, func(ctx context.Context) (err error) {
			input, err = p.stages.Extractor.Execute(ctx, req)
			return err
		}},
		{StageSynthesizing, func(ctx context.Context) (err error) {
			raw, err = p.stages.Synthesizer.Execute(ctx, input)
			return err
		}},
		{StageValidating, func(ctx context.Context) (err error) {
			validated, err = p.stages.Validator.Execute(ctx, raw)
			return err
		}},
		{StageRendering, func(ctx context.Context) (err error) {
			content, err = p.stages.Renderer.Execute(ctx, validated.Breakdown)
			return err
		}},
		{StageStoring, func(ctx context.Context) (err error) {
			artifact, err = p.stages.Store.Execute(ctx, content)
			return err
		}},
	}

	for _, s := range steps {
		if err := p.step(ctx, r, s.stage, s.fn); err != nil {
			return nil, err
		}
	}
	p.transition(r, StageCompleted)

	if n := len(validated.Warnings); n > 0 {
		metrics.LineItemsDropped.Add(float64(n))
	}

	return &Result{
		RunID:     r.id,
		Artifact:  artifact,
		Breakdown: validated.Breakdown,
		Warnings:  validated.Warnings,
	}, nil
}

// step enters stage, runs fn under a span and records the outcome.
func (p *Pipeline) step(ctx context.Context, r *run, stage Stage, fn func(ctx context.Context) error) error {
	p.transition(r, stage)
	name := metricStage[stage]

	ctx, span := p.obs.StartSpan(ctx, "change_order."+name)
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	if err == nil {
		metrics.ObserveStage(name, started, "")
		r.logger.Debug("stage completed", map[string]interface{}{
			"stage":      name,
			"durationMs": time.Since(started).Milliseconds(),
		})
		return nil
	}

	cause := apperrors.AsStandardError(err)
	metrics.ObserveStage(name, started, string(cause.Code))
	span.RecordError(cause)
	span.SetStatus(codes.Error, string(cause.Code))

	fields := map[string]interface{}{
		"stage":      name,
		"errorCode":  string(cause.Code),
		"error":      cause.Error(),
		"durationMs": time.Since(started).Milliseconds(),
	}
	if apperrors.IsClientFault(cause.Code) {
		r.logger.Warn("run rejected", fields)
	} else {
		r.logger.Error("run failed", fields)
	}

	p.transition(r, StageFailed)
	return &PipelineError{Stage: stage, Cause: cause}
}

func (p *Pipeline) transition(r *run, to Stage) {
	if !CanTransition(r.state, to) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", r.state, to))
	}
	from := r.state
	r.state = to
	if p.onTransition != nil {
		p.onTransition(r.id, from, to)
	}
}

// Health reports whether the artifact store is reachable.
func (p *Pipeline) Health(ctx context.Context) error {
	return p.stages.Store.Health(ctx)
}
