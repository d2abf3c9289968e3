package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dusk-indust/cofounder/internal/agent"
)

// Result is the output of a successful run.
type Result struct {
	StrategyAnalysis  string `json:"strategy_analysis"`
	TechnicalAnalysis string `json:"technical_analysis"`
	MarketingStrategy string `json:"marketing_strategy"`
	FinalReport       string `json:"final_report"`
}

// Map returns the four result fields keyed by result name.
func (r *Result) Map() map[string]string {
	return map[string]string{
		ResultStrategy:  r.StrategyAnalysis,
		ResultTechnical: r.TechnicalAnalysis,
		ResultMarketing: r.MarketingStrategy,
		ResultFinal:     r.FinalReport,
	}
}

// Get returns the field for a result name.
func (r *Result) Get(name string) (string, bool) {
	v, ok := r.Map()[name]
	return v, ok
}

// RunError describes a run that stopped before the report was compiled.
type RunError struct {
	RunID string
	// Step is the last step the record reached before the failure.
	Step Step
	// Key is the entry that could not be produced.
	Key Key
	Err error
	// Partial holds the stage outputs completed before the failure, keyed
	// by result name. It never contains the final report.
	Partial map[string]string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s stage failed after %s: %v", e.Key, e.Step, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStageFailed.
func (e *RunError) Is(target error) bool { return target == ErrStageFailed }

// pipelineStep is one entry of the ordered step list.
type pipelineStep struct {
	key    Key
	runner StageRunner
	// needs are the keys handed to the runner as prior context, in order.
	needs []Key
}

// Pipeline runs the three stages in order and compiles the report. A
// Pipeline holds no per-run state; concurrent Run calls each get their own
// record.
type Pipeline struct {
	steps       []pipelineStep
	logger      *zap.Logger
	progress    *ProgressReporter
	requireIdea bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress sends every transition to pr. The caller owns pr and closes
// it after the last run.
func WithProgress(pr *ProgressReporter) Option {
	return func(p *Pipeline) { p.progress = pr }
}

// WithRequireIdea controls the empty-idea check. When enabled (the default)
// an empty or whitespace-only idea fails with ErrInvalidInput before any
// stage runs; when disabled it is forwarded to the stages.
func WithRequireIdea(require bool) Option {
	return func(p *Pipeline) { p.requireIdea = require }
}

// NewPipeline creates a pipeline from the three stage runners.
func NewPipeline(strategy, technical, marketing StageRunner, opts ...Option) (*Pipeline, error) {
	if strategy == nil || technical == nil || marketing == nil {
		return nil, errors.New("pipeline: all three stage runners are required")
	}
	p := &Pipeline{
		steps: []pipelineStep{
			{key: KeyStrategy, runner: strategy},
			{key: KeyTechnical, runner: technical, needs: []Key{KeyStrategy}},
			{key: KeyMarketing, runner: marketing, needs: []Key{KeyStrategy, KeyTechnical}},
		},
		logger:      zap.NewNop(),
		requireIdea: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// FromRegistry builds a pipeline from the registry's stages.
func FromRegistry(reg *agent.Registry, opts ...Option) (*Pipeline, error) {
	s, t, m, err := reg.Stages()
	if err != nil {
		return nil, err
	}
	return NewPipeline(s, t, m, opts...)
}

// Analyze runs the pipeline and returns the four result fields keyed by
// strategy_analysis, technical_analysis, marketing_strategy and
// final_report.
func (p *Pipeline) Analyze(ctx context.Context, idea string) (map[string]string, error) {
	res, err := p.Run(ctx, idea)
	if err != nil {
		return nil, err
	}
	return res.Map(), nil
}

// Run executes strategy, technical and marketing in order, then compiles the
// report. It stops at the first failure and returns a *RunError; no later
// stage is called. A nil Result is returned with every error.
func (p *Pipeline) Run(ctx context.Context, idea string) (*Result, error) {
	return p.RunWithProgress(ctx, idea, nil)
}

// RunWithProgress is Run with an additional per-run progress callback.
// onProgress is called synchronously on the calling goroutine; it may be nil.
func (p *Pipeline) RunWithProgress(ctx context.Context, idea string, onProgress func(ProgressEvent)) (*Result, error) {
	if p.requireIdea && strings.TrimSpace(idea) == "" {
		return nil, ErrInvalidInput
	}

	r := &run{
		id:         uuid.NewString(),
		pipeline:   p,
		onProgress: onProgress,
		record:     NewRecord(idea),
	}
	r.log = p.logger.With(zap.String("run_id", r.id))
	return r.execute(ctx)
}

// run is the state of one Run call.
type run struct {
	id         string
	pipeline   *Pipeline
	log        *zap.Logger
	onProgress func(ProgressEvent)
	record     Record
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	started := time.Now()
	r.log.Info("analysis started", zap.Int("idea_len", len(r.record.Idea())))

	for _, k := range Keys() {
		r.emit(k, ProgressPending, "")
	}

	for _, st := range r.pipeline.steps {
		if err := r.runStep(ctx, st); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(KeyFinal, err)
	}
	strategy, _ := r.record.Get(KeyStrategy)
	technical, _ := r.record.Get(KeyTechnical)
	marketing, _ := r.record.Get(KeyMarketing)
	report := Compile(r.record.Idea(), strategy, technical, marketing)

	next, err := r.record.With(KeyFinal, report)
	if err != nil {
		return nil, r.fail(KeyFinal, err)
	}
	r.record = next
	r.emit(KeyFinal, ProgressComplete, "")
	r.log.Info("analysis complete",
		zap.String("step", string(r.record.Step())),
		zap.Duration("duration", time.Since(started)),
	)

	return &Result{
		StrategyAnalysis:  strategy,
		TechnicalAnalysis: technical,
		MarketingStrategy: marketing,
		FinalReport:       report,
	}, nil
}

func (r *run) runStep(ctx context.Context, st pipelineStep) error {
	if err := ctx.Err(); err != nil {
		return r.fail(st.key, err)
	}

	prior := make([]agent.Context, 0, len(st.needs))
	for _, k := range st.needs {
		text, ok := r.record.Get(k)
		if !ok {
			return r.fail(st.key, fmt.Errorf("%w: %s requires %s", ErrPrecondition, st.key, k))
		}
		prior = append(prior, agent.Context{Role: agent.Role(k), Text: text})
	}

	r.emit(st.key, ProgressWorking, "")
	r.log.Debug("stage started", zap.String("stage", string(st.key)), zap.Int("prior", len(prior)))

	started := time.Now()
	text, err := st.runner.Run(ctx, r.record.Idea(), prior)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		return r.fail(st.key, err)
	}

	next, err := r.record.With(st.key, text)
	if err != nil {
		return r.fail(st.key, err)
	}
	r.record = next

	r.emit(st.key, ProgressComplete, "")
	r.log.Info("stage complete",
		zap.String("stage", string(st.key)),
		zap.String("step", string(r.record.Step())),
		zap.Duration("duration", time.Since(started)),
		zap.Int("output_len", len(text)),
	)
	return nil
}

func (r *run) fail(key Key, err error) error {
	reached := r.record.Step()
	r.record = r.record.Failed()
	r.emit(key, ProgressFailed, err.Error())
	r.log.Error("stage failed",
		zap.String("stage", string(key)),
		zap.String("step", string(reached)),
		zap.Error(err),
	)
	return &RunError{
		RunID:   r.id,
		Step:    reached,
		Key:     key,
		Err:     err,
		Partial: r.record.Completed(false),
	}
}

func (r *run) emit(key Key, status ProgressStatus, msg string) {
	ev := ProgressEvent{
		RunID:   r.id,
		Key:     key,
		Step:    r.record.Step(),
		Status:  status,
		Message: msg,
	}
	if r.pipeline.progress != nil {
		r.pipeline.progress.Emit(ev)
	}
	if r.onProgress != nil {
		r.onProgress(ev)
	}
}
