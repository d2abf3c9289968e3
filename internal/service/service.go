// Package service serves startup analyses as A2A tasks. One message/send
// is one pipeline run; its outputs become the task's artifacts. Messages
// built by generator.NewRequestMessage are answered instead with a single
// generator call, so remote stages can use this service as their model.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/cofounder/internal/a2a"
	"github.com/dusk-indust/cofounder/internal/generator"
	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

// Compile-time interface checks.
var (
	_ a2a.Handler       = (*Service)(nil)
	_ a2a.StreamHandler = (*Service)(nil)
)

// Analyzer runs one analysis and reports each transition to onProgress.
// *orchestrator.Pipeline satisfies it.
type Analyzer interface {
	RunWithProgress(ctx context.Context, idea string, onProgress func(orchestrator.ProgressEvent)) (*orchestrator.Result, error)
}

// Metadata is attached to the task and to each status message.
type Metadata struct {
	RunID       string `json:"runId,omitempty"`
	CurrentStep string `json:"currentStep,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Skill       string `json:"skill,omitempty"`
}

// MetadataOf decodes the metadata of a task or status message.
func MetadataOf(raw json.RawMessage) (Metadata, bool) {
	var md Metadata
	if len(raw) == 0 || json.Unmarshal(raw, &md) != nil {
		return Metadata{}, false
	}
	return md, true
}

// Service implements a2a.Handler and a2a.StreamHandler on top of an
// Analyzer and an in-memory task store.
type Service struct {
	analyzer Analyzer
	gen      generator.Generator
	store    *a2a.TaskStore
	logger   *zap.Logger
	timeout  time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds each run. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithGenerator enables the generate skill, answered by one call to gen.
func WithGenerator(gen generator.Generator) Option {
	return func(s *Service) { s.gen = gen }
}

// New creates a Service.
func New(analyzer Analyzer, opts ...Option) (*Service, error) {
	if analyzer == nil {
		return nil, errors.New("service: analyzer is required")
	}
	s := &Service{
		analyzer: analyzer,
		store:    a2a.NewTaskStore(),
		logger:   zap.NewNop(),
		cancels:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Card returns the agent card advertised by the service. The generate skill
// is listed only when a generator is configured.
func (s *Service) Card(url, version string) a2a.AgentCard {
	card := a2a.AgentCard{
		Name:               "cofounder",
		Description:        "Analyzes a startup idea with strategy, technical and marketing agents and compiles a unified report.",
		Version:            version,
		URL:                url,
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/markdown"},
		Skills: []a2a.AgentSkill{
			{
				ID:          "analyze_idea",
				Name:        "Analyze startup idea",
				Description: "Runs business strategy, technical plan and marketing strategy in order and returns each section plus a final report.",
				Tags:        []string{"strategy", "technical", "marketing", "report"},
				Examples:    []string{"A subscription service that delivers and maintains office plants"},
			},
		},
	}
	if s.gen != nil {
		card.Skills = append(card.Skills, a2a.AgentSkill{
			ID:          generator.SkillGenerate,
			Name:        "Generate text",
			Description: "Answers one instruction with the role and temperature given in the message metadata. Returns a single generated_text artifact.",
			Tags:        []string{"generate"},
		})
	}
	return card
}

// HandleSendMessage runs the analysis for the message text and returns the
// finished task. A failed run is reported through the task state, not as a
// JSON-RPC error.
func (s *Service) HandleSendMessage(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	return s.execute(ctx, req.Message, nil)
}

// HandleStreamMessage is HandleSendMessage with one status update per
// pipeline transition, followed by the final task. The run is cancelled if
// the client goes away.
func (s *Service) HandleStreamMessage(ctx context.Context, req a2a.SendMessageRequest, emit func(a2a.StreamEvent) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var emitErr error
	task, err := s.execute(ctx, req.Message, func(t *a2a.Task) {
		if emitErr != nil {
			return
		}
		emitErr = emit(a2a.StreamEvent{StatusUpdate: &a2a.TaskStatusUpdateEvent{
			TaskID:    t.ID,
			ContextID: t.ContextID,
			Status:    t.Status,
		}})
		if emitErr != nil {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	if emitErr != nil {
		return fmt.Errorf("stream closed: %w", emitErr)
	}
	return emit(a2a.StreamEvent{Task: task})
}

// HandleGetTask returns a task by ID.
func (s *Service) HandleGetTask(_ context.Context, req a2a.GetTaskRequest) (*a2a.Task, error) {
	return s.store.Get(req.ID)
}

// HandleListTasks returns tasks matching the filter.
func (s *Service) HandleListTasks(_ context.Context, req a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	return s.store.List(req)
}

// HandleCancelTask marks a running task canceled and cancels its run.
func (s *Service) HandleCancelTask(_ context.Context, req a2a.CancelTaskRequest) (*a2a.Task, error) {
	var terminal bool
	task, err := s.store.Update(req.ID, func(t *a2a.Task) {
		if t.Status.State.IsTerminal() {
			terminal = true
			return
		}
		md, _ := MetadataOf(t.Metadata)
		t.Status = status(a2a.TaskStateCanceled, md, "task canceled")
	})
	if err != nil {
		return nil, err
	}
	if terminal {
		return nil, &a2a.CodedError{
			Code: a2a.ErrCodeTaskNotCancelable,
			Err:  fmt.Errorf("task %q is already %s", req.ID, task.Status.State),
		}
	}

	s.mu.Lock()
	cancel := s.cancels[req.ID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.logger.Info("task canceled", zap.String("task_id", req.ID))
	return task, nil
}

// execute stores a task for msg, runs the analysis and records the outcome.
// notify receives the task after every non-terminal update.
func (s *Service) execute(ctx context.Context, msg a2a.Message, notify func(*a2a.Task)) (*a2a.Task, error) {
	task := a2a.Task{ID: a2a.NewID(), ContextID: msg.ContextID}
	if task.ContextID == "" {
		task.ContextID = a2a.NewID()
	}
	msg.TaskID = task.ID
	msg.ContextID = task.ContextID
	task.History = []a2a.Message{msg}
	task.Status = status(a2a.TaskStateSubmitted, Metadata{CurrentStep: string(orchestrator.StepNotStarted)}, "")

	runCtx, cancel := s.runContext(ctx)
	s.mu.Lock()
	s.cancels[task.ID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, task.ID)
		s.mu.Unlock()
		cancel()
	}()

	if err := s.store.Create(task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	log := s.logger.With(zap.String("task_id", task.ID))
	if req, ok := generator.RequestFromMessage(msg); ok {
		return s.generate(runCtx, task.ID, req, log)
	}
	log.Info("task started", zap.Int("idea_len", len(msg.Text())))
	started := time.Now()

	var runID string
	res, runErr := s.analyzer.RunWithProgress(runCtx, msg.Text(), func(ev orchestrator.ProgressEvent) {
		runID = ev.RunID
		if ev.Status == orchestrator.ProgressFailed {
			return
		}
		md := Metadata{RunID: ev.RunID, CurrentStep: string(ev.Step), Stage: string(ev.Key)}
		var skipped bool
		updated, err := s.store.Update(task.ID, func(t *a2a.Task) {
			if t.Status.State.IsTerminal() {
				skipped = true
				return
			}
			t.Status = status(a2a.TaskStateWorking, md, orchestrator.FormatProgress(ev))
			t.Metadata = encode(Metadata{RunID: md.RunID, CurrentStep: md.CurrentStep})
		})
		if err == nil && !skipped && notify != nil {
			notify(updated)
		}
	})

	final, err := s.finish(task.ID, runID, res, runErr)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("state", string(final.Status.State)),
		zap.Duration("duration", time.Since(started)),
	}
	if runErr != nil {
		log.Warn("task finished without report", append(fields, zap.Error(runErr))...)
	} else {
		log.Info("task completed", fields...)
	}
	return final, nil
}

// finish writes the terminal state. A task canceled through tasks/cancel
// keeps its state; whatever the run produced is still attached.
func (s *Service) finish(taskID, runID string, res *orchestrator.Result, runErr error) (*a2a.Task, error) {
	var (
		state     a2a.TaskState
		md        = Metadata{RunID: runID}
		text      string
		artifacts []a2a.Artifact
	)

	switch {
	case runErr == nil:
		state = a2a.TaskStateCompleted
		md.CurrentStep = string(orchestrator.StepCompiled)
		artifacts = resultArtifacts(res.Map())
	case errors.Is(runErr, orchestrator.ErrInvalidInput):
		state = a2a.TaskStateRejected
		md.CurrentStep = string(orchestrator.StepNotStarted)
		text = runErr.Error()
	default:
		state = a2a.TaskStateFailed
		if errors.Is(runErr, context.Canceled) {
			state = a2a.TaskStateCanceled
		}
		md.CurrentStep = string(orchestrator.StepFailed)
		text = runErr.Error()
		var re *orchestrator.RunError
		if errors.As(runErr, &re) {
			md.Stage = string(re.Key)
			artifacts = resultArtifacts(re.Partial)
		}
	}

	return s.store.Update(taskID, func(t *a2a.Task) {
		t.Artifacts = artifacts
		if t.Status.State.IsTerminal() {
			return
		}
		t.Status = status(state, md, text)
		t.Metadata = encode(Metadata{RunID: md.RunID, CurrentStep: md.CurrentStep})
	})
}

// generate answers a generate-skill task with exactly one generator call.
func (s *Service) generate(ctx context.Context, taskID string, req generator.Request, log *zap.Logger) (*a2a.Task, error) {
	started := time.Now()
	md := Metadata{Skill: generator.SkillGenerate}

	var (
		state     a2a.TaskState
		text      string
		artifacts []a2a.Artifact
		genErr    error
	)
	if s.gen == nil {
		state = a2a.TaskStateRejected
		text = "generate skill is not enabled"
	} else {
		var out string
		out, genErr = s.gen.Generate(ctx, req)
		switch {
		case genErr == nil:
			state = a2a.TaskStateCompleted
			artifacts = []a2a.Artifact{{
				ArtifactID: a2a.NewID(),
				Name:       generator.GeneratedArtifact,
				Parts:      []a2a.Part{a2a.TextPart(out)},
			}}
		case errors.Is(genErr, context.Canceled):
			state = a2a.TaskStateCanceled
			text = genErr.Error()
		default:
			state = a2a.TaskStateFailed
			text = genErr.Error()
		}
	}

	final, err := s.store.Update(taskID, func(t *a2a.Task) {
		t.Artifacts = artifacts
		if t.Status.State.IsTerminal() {
			return
		}
		t.Status = status(state, md, text)
		t.Metadata = encode(md)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("state", string(final.Status.State)),
		zap.Float64("temperature", req.Temperature),
		zap.Duration("duration", time.Since(started)),
	}
	if genErr != nil {
		log.Warn("generation failed", append(fields, zap.Error(genErr))...)
	} else {
		log.Info("generation finished", fields...)
	}
	return final, nil
}

func (s *Service) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// resultArtifacts turns the entries of a result map into artifacts, in
// record order. Missing entries are skipped.
func resultArtifacts(entries map[string]string) []a2a.Artifact {
	var out []a2a.Artifact
	for _, k := range orchestrator.Keys() {
		name := k.ResultName()
		text, ok := entries[name]
		if !ok {
			continue
		}
		out = append(out, a2a.Artifact{
			ArtifactID:  a2a.NewID(),
			Name:        name,
			Description: orchestrator.StepLabel(k),
			Parts:       []a2a.Part{a2a.MarkdownPart(text, name+".md")},
		})
	}
	return out
}

func status(state a2a.TaskState, md Metadata, text string) a2a.TaskStatus {
	msg := a2a.NewTextMessage(a2a.RoleAgent, text)
	if text == "" {
		msg.Parts = []a2a.Part{}
	}
	msg.Metadata = encode(md)
	return a2a.TaskStatus{
		State:     state,
		Message:   &msg,
		Timestamp: time.Now(),
	}
}

func encode(md Metadata) json.RawMessage {
	data, _ := json.Marshal(md)
	return data
}
