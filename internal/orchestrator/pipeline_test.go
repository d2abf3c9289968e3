package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dusk-indust/cofounder/internal/agent"
	"github.com/dusk-indust/cofounder/internal/generator"
	"github.com/dusk-indust/cofounder/internal/prompts"
)

// ---------------------------------------------------------------------------
// Stub stage runner
// ---------------------------------------------------------------------------

// stubRunner returns a fixed reply and records every call.
type stubRunner struct {
	mu     sync.Mutex
	reply  string
	err    error
	before func(ctx context.Context)
	calls  [][]agent.Context
	ideas  []string
}

func (s *stubRunner) Run(ctx context.Context, idea string, prior []agent.Context) (string, error) {
	if s.before != nil {
		s.before(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]agent.Context(nil), prior...))
	s.ideas = append(s.ideas, idea)
	return s.reply, s.err
}

func (s *stubRunner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newStubs() (*stubRunner, *stubRunner, *stubRunner) {
	return &stubRunner{reply: "STRATEGY-OUT"}, &stubRunner{reply: "TECHNICAL-OUT"}, &stubRunner{reply: "MARKETING-OUT"}
}

func mustPipeline(t *testing.T, s, tech, m StageRunner, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(s, tech, m, opts...)
	require.NoError(t, err)
	return p
}

// ---------------------------------------------------------------------------
// Success path
// ---------------------------------------------------------------------------

func TestPipeline_RunPassesContextInOrder(t *testing.T) {
	s, tech, m := newStubs()
	p := mustPipeline(t, s, tech, m)

	res, err := p.Run(context.Background(), "IDEA-TEXT")
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Len(t, s.calls, 1)
	assert.Empty(t, s.calls[0])

	require.Len(t, tech.calls, 1)
	assert.Equal(t, []agent.Context{{Role: agent.RoleStrategy, Text: "STRATEGY-OUT"}}, tech.calls[0])

	require.Len(t, m.calls, 1)
	assert.Equal(t, []agent.Context{
		{Role: agent.RoleStrategy, Text: "STRATEGY-OUT"},
		{Role: agent.RoleTechnical, Text: "TECHNICAL-OUT"},
	}, m.calls[0])

	for _, r := range []*stubRunner{s, tech, m} {
		assert.Equal(t, []string{"IDEA-TEXT"}, r.ideas)
	}
}

func TestPipeline_ResultShape(t *testing.T) {
	s, tech, m := newStubs()
	p := mustPipeline(t, s, tech, m)

	out, err := p.Analyze(context.Background(), "IDEA-TEXT")
	require.NoError(t, err)

	assert.Len(t, out, 4)
	assert.Equal(t, "STRATEGY-OUT", out["strategy_analysis"])
	assert.Equal(t, "TECHNICAL-OUT", out["technical_analysis"])
	assert.Equal(t, "MARKETING-OUT", out["marketing_strategy"])
	assert.Equal(t, Compile("IDEA-TEXT", "STRATEGY-OUT", "TECHNICAL-OUT", "MARKETING-OUT"), out["final_report"])
}

func TestPipeline_ResultJSON(t *testing.T) {
	s, tech, m := newStubs()
	res, err := mustPipeline(t, s, tech, m).Run(context.Background(), "idea")
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res.Map(), decoded)
}

func TestPipeline_GeneratedTextIsNotAltered(t *testing.T) {
	raw := "\n\n  ## Heading with trailing space   \n\t"
	s := &stubRunner{reply: raw}
	_, tech, m := newStubs()

	res, err := mustPipeline(t, s, tech, m).Run(context.Background(), "idea")
	require.NoError(t, err)
	assert.Equal(t, raw, res.StrategyAnalysis)
	assert.Equal(t, raw, tech.calls[0][0].Text)
}

// The report holds the idea and the three outputs exactly once each, in
// pipeline order, followed by the action items.
func TestPipeline_EndToEndWithRealStages(t *testing.T) {
	const (
		idea      = "IDEA-7f3a: a subscription service for office plants"
		strategy  = "STRATEGY-91c2"
		technical = "TECHNICAL-4b8d"
		marketing = "MARKETING-e6f0"
	)

	gen := &labelGenerator{t: t, replies: map[agent.Role]string{
		agent.RoleStrategy:  strategy,
		agent.RoleTechnical: technical,
		agent.RoleMarketing: marketing,
	}}
	reg, err := agent.NewRegistry(gen, agent.DefaultTemperatures())
	require.NoError(t, err)
	p, err := FromRegistry(reg)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), idea)
	require.NoError(t, err)

	report := res.FinalReport
	last := -1
	for _, part := range []string{idea, strategy, technical, marketing} {
		assert.Equal(t, 1, strings.Count(report, part), part)
		idx := strings.Index(report, part)
		assert.Greater(t, idx, last, part)
		last = idx
	}
	for _, item := range ActionItems() {
		assert.Contains(t, report, item)
		assert.Greater(t, strings.Index(report, item), last)
	}

	// Each stage received exactly the earlier outputs.
	require.Len(t, gen.requests, 3)
	assert.NotContains(t, gen.requests[0].Instruction, strategy)
	assert.Contains(t, gen.requests[1].Instruction, strategy)
	assert.NotContains(t, gen.requests[1].Instruction, marketing)
	assert.Contains(t, gen.requests[2].Instruction, strategy)
	assert.Contains(t, gen.requests[2].Instruction, technical)
	assert.InDelta(t, 0.8, gen.requests[2].Temperature, 1e-9)
}

// labelGenerator answers by persona so the stages can be told apart.
type labelGenerator struct {
	t        *testing.T
	mu       sync.Mutex
	replies  map[agent.Role]string
	requests []generator.Request
}

func (g *labelGenerator) Generate(_ context.Context, req generator.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	for _, role := range agent.Roles() {
		persona, err := prompts.Persona(string(role))
		require.NoError(g.t, err)
		if req.Role == persona {
			return g.replies[role], nil
		}
	}
	return "", errors.New("unknown persona")
}

// ---------------------------------------------------------------------------
// Input validation
// ---------------------------------------------------------------------------

func TestPipeline_EmptyIdeaRejected(t *testing.T) {
	for _, idea := range []string{"", "   ", "\n\t"} {
		s, tech, m := newStubs()
		res, err := mustPipeline(t, s, tech, m).Run(context.Background(), idea)
		require.ErrorIs(t, err, ErrInvalidInput)
		assert.Nil(t, res)
		assert.Zero(t, s.count())
	}
}

func TestPipeline_EmptyIdeaForwardedWhenCheckDisabled(t *testing.T) {
	s, tech, m := newStubs()
	res, err := mustPipeline(t, s, tech, m, WithRequireIdea(false)).Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, s.ideas)
	assert.Contains(t, res.FinalReport, "## 📋 STARTUP IDEA\n\n")
}

func TestNewPipeline_NilRunner(t *testing.T) {
	s, tech, _ := newStubs()
	_, err := NewPipeline(s, tech, nil)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Failure path
// ---------------------------------------------------------------------------

func TestPipeline_FailFast(t *testing.T) {
	cause := &generator.Error{Provider: "groq", Model: "m", Err: errors.New("rate limited")}

	tests := []struct {
		name        string
		failAt      Key
		wantStep    Step
		wantPartial map[string]string
		wantCalls   [3]int
	}{
		{
			name:        "strategy",
			failAt:      KeyStrategy,
			wantStep:    StepNotStarted,
			wantPartial: map[string]string{},
			wantCalls:   [3]int{1, 0, 0},
		},
		{
			name:        "technical",
			failAt:      KeyTechnical,
			wantStep:    StepStrategyDone,
			wantPartial: map[string]string{ResultStrategy: "STRATEGY-OUT"},
			wantCalls:   [3]int{1, 1, 0},
		},
		{
			name:     "marketing",
			failAt:   KeyMarketing,
			wantStep: StepTechnicalDone,
			wantPartial: map[string]string{
				ResultStrategy:  "STRATEGY-OUT",
				ResultTechnical: "TECHNICAL-OUT",
			},
			wantCalls: [3]int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tech, m := newStubs()
			map[Key]*stubRunner{KeyStrategy: s, KeyTechnical: tech, KeyMarketing: m}[tt.failAt].err = cause

			res, err := mustPipeline(t, s, tech, m).Run(context.Background(), "idea")
			require.Error(t, err)
			assert.Nil(t, res)

			assert.ErrorIs(t, err, ErrStageFailed)
			assert.ErrorIs(t, err, generator.ErrGeneration)
			assert.ErrorIs(t, err, cause)

			var runErr *RunError
			require.True(t, errors.As(err, &runErr))
			assert.Equal(t, tt.failAt, runErr.Key)
			assert.Equal(t, tt.wantStep, runErr.Step)
			assert.Equal(t, tt.wantPartial, runErr.Partial)
			assert.NotContains(t, runErr.Partial, ResultFinal)
			assert.NotEmpty(t, runErr.RunID)

			assert.Equal(t, tt.wantCalls, [3]int{s.count(), tech.count(), m.count()})
		})
	}
}

func TestPipeline_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, tech, m := newStubs()
	_, err := mustPipeline(t, s, tech, m).Run(ctx, "idea")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrStageFailed)
	assert.Zero(t, s.count())
}

func TestPipeline_CancelledDuringStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, tech, m := newStubs()
	// The strategy stage succeeds but the caller cancels while it runs.
	s.before = func(context.Context) { cancel() }

	_, err := mustPipeline(t, s, tech, m).Run(ctx, "idea")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, KeyTechnical, runErr.Key)
	assert.Equal(t, StepStrategyDone, runErr.Step)
	assert.Equal(t, map[string]string{ResultStrategy: "STRATEGY-OUT"}, runErr.Partial)
	assert.Zero(t, tech.count())
	assert.Zero(t, m.count())
}

func TestPipeline_StageErrorDuringCancellationMatchesContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, tech, m := newStubs()
	s.err = errors.New("transport closed")
	s.before = func(context.Context) { cancel() }

	_, err := mustPipeline(t, s, tech, m).Run(ctx, "idea")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "transport closed")
}

func TestPipeline_ReusableAfterFailure(t *testing.T) {
	s, tech, m := newStubs()
	tech.err = errors.New("boom")
	p := mustPipeline(t, s, tech, m)

	_, err := p.Run(context.Background(), "first")
	require.Error(t, err)

	tech.mu.Lock()
	tech.err = nil
	tech.mu.Unlock()

	res, err := p.Run(context.Background(), "second")
	require.NoError(t, err)
	assert.Contains(t, res.FinalReport, "second")
	assert.NotContains(t, res.FinalReport, "first")
}

// ---------------------------------------------------------------------------
// Progress and logging
// ---------------------------------------------------------------------------

func TestPipeline_ProgressSequence(t *testing.T) {
	s, tech, m := newStubs()
	pr := NewProgressReporter()
	p := mustPipeline(t, s, tech, m, WithProgress(pr))

	var events []ProgressEvent
	_, err := p.RunWithProgress(context.Background(), "idea", func(ev ProgressEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	pr.Close()

	type step struct {
		key    Key
		status ProgressStatus
		step   Step
	}
	var got []step
	for _, ev := range events {
		got = append(got, step{ev.Key, ev.Status, ev.Step})
	}
	assert.Equal(t, []step{
		{KeyStrategy, ProgressPending, StepNotStarted},
		{KeyTechnical, ProgressPending, StepNotStarted},
		{KeyMarketing, ProgressPending, StepNotStarted},
		{KeyFinal, ProgressPending, StepNotStarted},
		{KeyStrategy, ProgressWorking, StepNotStarted},
		{KeyStrategy, ProgressComplete, StepStrategyDone},
		{KeyTechnical, ProgressWorking, StepStrategyDone},
		{KeyTechnical, ProgressComplete, StepTechnicalDone},
		{KeyMarketing, ProgressWorking, StepTechnicalDone},
		{KeyMarketing, ProgressComplete, StepMarketingDone},
		{KeyFinal, ProgressComplete, StepCompiled},
	}, got)

	runID := events[0].RunID
	var fromReporter []ProgressEvent
	for ev := range pr.Subscribe() {
		assert.Equal(t, runID, ev.RunID)
		fromReporter = append(fromReporter, ev)
	}
	assert.Equal(t, events, fromReporter)
}

func TestPipeline_ProgressOnFailure(t *testing.T) {
	s, tech, m := newStubs()
	tech.err = errors.New("boom")

	var last ProgressEvent
	_, err := mustPipeline(t, s, tech, m).RunWithProgress(context.Background(), "idea", func(ev ProgressEvent) {
		last = ev
	})
	require.Error(t, err)
	assert.Equal(t, KeyTechnical, last.Key)
	assert.Equal(t, ProgressFailed, last.Status)
	assert.Equal(t, StepFailed, last.Step)
	assert.Contains(t, last.Message, "boom")
}

func TestPipeline_LogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, tech, m := newStubs()
	p := mustPipeline(t, s, tech, m, WithLogger(zap.New(core)))

	_, err := p.Run(context.Background(), "idea")
	require.NoError(t, err)

	completed := logs.FilterMessage("stage complete").All()
	require.Len(t, completed, 3)

	wantSteps := []Step{StepStrategyDone, StepTechnicalDone, StepMarketingDone}
	for i, entry := range completed {
		fields := entry.ContextMap()
		assert.Equal(t, string(Keys()[i]), fields["stage"])
		assert.Equal(t, string(wantSteps[i]), fields["step"])
		assert.NotEmpty(t, fields["run_id"])
		assert.Contains(t, fields, "duration")
	}

	done := logs.FilterMessage("analysis complete").All()
	require.Len(t, done, 1)
	assert.Equal(t, string(StepCompiled), done[0].ContextMap()["step"])
}

func TestPipeline_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s, tech, m := newStubs()
	m.err = errors.New("boom")

	_, err := mustPipeline(t, s, tech, m, WithLogger(zap.New(core))).Run(context.Background(), "idea")
	require.Error(t, err)

	failed := logs.FilterMessage("stage failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, "marketing", failed[0].ContextMap()["stage"])
	assert.Equal(t, string(StepTechnicalDone), failed[0].ContextMap()["step"])
}
