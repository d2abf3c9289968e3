package service

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dusk-indust/cofounder/internal/a2a"
	"github.com/dusk-indust/cofounder/internal/agent"
	"github.com/dusk-indust/cofounder/internal/generator"
	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// textRunner is a stage runner that always returns its own text.
type textRunner string

func (r textRunner) Run(context.Context, string, []agent.Context) (string, error) {
	return string(r), nil
}

// failRunner always fails.
type failRunner struct{ err error }

func (r failRunner) Run(context.Context, string, []agent.Context) (string, error) {
	return "", r.err
}

// blockRunner waits for cancellation after signalling that it started.
type blockRunner struct{ started chan struct{} }

func (r blockRunner) Run(ctx context.Context, _ string, _ []agent.Context) (string, error) {
	close(r.started)
	<-ctx.Done()
	return "", ctx.Err()
}

func newPipeline(t *testing.T, s, tech, m orchestrator.StageRunner) *orchestrator.Pipeline {
	t.Helper()
	p, err := orchestrator.NewPipeline(s, tech, m)
	require.NoError(t, err)
	return p
}

func newService(t *testing.T, a Analyzer, opts ...Option) *Service {
	t.Helper()
	svc, err := New(a, opts...)
	require.NoError(t, err)
	return svc
}

func send(t *testing.T, svc *Service, text string) *a2a.Task {
	t.Helper()
	task, err := svc.HandleSendMessage(context.Background(), a2a.SendMessageRequest{
		Message: a2a.NewTextMessage(a2a.RoleUser, text),
	})
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func statusMetadata(t *testing.T, task *a2a.Task) Metadata {
	t.Helper()
	require.NotNil(t, task.Status.Message)
	md, ok := MetadataOf(task.Status.Message.Metadata)
	require.True(t, ok)
	return md
}

// ---------------------------------------------------------------------------
// message/send
// ---------------------------------------------------------------------------

func TestSendMessage_Completed(t *testing.T) {
	svc := newService(t, newPipeline(t, textRunner("S-OUT"), textRunner("T-OUT"), textRunner("M-OUT")))

	task := send(t, svc, "plant subscriptions")

	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 4)

	names := make([]string, 0, len(task.Artifacts))
	for _, a := range task.Artifacts {
		names = append(names, a.Name)
		assert.NotEmpty(t, a.ArtifactID)
		require.Len(t, a.Parts, 1)
		assert.Equal(t, "text/markdown", a.Parts[0].MediaType)
		assert.Equal(t, a.Name+".md", a.Parts[0].Filename)
	}
	assert.Equal(t, []string{
		orchestrator.ResultStrategy,
		orchestrator.ResultTechnical,
		orchestrator.ResultMarketing,
		orchestrator.ResultFinal,
	}, names)

	strategy, ok := task.Artifact(orchestrator.ResultStrategy)
	require.True(t, ok)
	assert.Equal(t, "S-OUT", strategy.Text())
	final, ok := task.Artifact(orchestrator.ResultFinal)
	require.True(t, ok)
	assert.Equal(t, orchestrator.Compile("plant subscriptions", "S-OUT", "T-OUT", "M-OUT"), final.Text())

	md := statusMetadata(t, task)
	assert.Equal(t, string(orchestrator.StepCompiled), md.CurrentStep)
	assert.NotEmpty(t, md.RunID)

	taskMD, ok := MetadataOf(task.Metadata)
	require.True(t, ok)
	assert.Equal(t, md.RunID, taskMD.RunID)

	require.Len(t, task.History, 1)
	assert.Equal(t, "plant subscriptions", task.History[0].Text())
	assert.Equal(t, task.ID, task.History[0].TaskID)
	assert.NotEmpty(t, task.ContextID)
}

func TestSendMessage_KeepsContextID(t *testing.T) {
	svc := newService(t, newPipeline(t, textRunner("s"), textRunner("t"), textRunner("m")))

	msg := a2a.NewTextMessage(a2a.RoleUser, "idea")
	msg.ContextID = "ctx-42"
	task, err := svc.HandleSendMessage(context.Background(), a2a.SendMessageRequest{Message: msg})
	require.NoError(t, err)
	assert.Equal(t, "ctx-42", task.ContextID)

	list, err := svc.HandleListTasks(context.Background(), a2a.ListTasksRequest{ContextID: "ctx-42"})
	require.NoError(t, err)
	assert.Len(t, list.Tasks, 1)
}

func TestSendMessage_FailedWithPartialArtifacts(t *testing.T) {
	svc := newService(t, newPipeline(t,
		textRunner("S-OUT"),
		failRunner{err: errors.New("quota exhausted")},
		textRunner("M-OUT"),
	))

	task := send(t, svc, "idea")

	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Contains(t, task.Status.Message.Text(), "quota exhausted")

	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, orchestrator.ResultStrategy, task.Artifacts[0].Name)
	assert.Equal(t, "S-OUT", task.Artifacts[0].Text())

	md := statusMetadata(t, task)
	assert.Equal(t, string(orchestrator.StepFailed), md.CurrentStep)
	assert.Equal(t, string(orchestrator.KeyTechnical), md.Stage)
}

func TestSendMessage_EmptyIdeaRejected(t *testing.T) {
	svc := newService(t, newPipeline(t, textRunner("s"), textRunner("t"), textRunner("m")))

	task := send(t, svc, "   ")
	assert.Equal(t, a2a.TaskStateRejected, task.Status.State)
	assert.Empty(t, task.Artifacts)
	assert.Equal(t, string(orchestrator.StepNotStarted), statusMetadata(t, task).CurrentStep)
}

func TestSendMessage_Timeout(t *testing.T) {
	block := blockRunner{started: make(chan struct{})}
	svc := newService(t, newPipeline(t, block, textRunner("t"), textRunner("m")),
		WithTimeout(20*time.Millisecond))

	task := send(t, svc, "idea")
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Contains(t, task.Status.Message.Text(), context.DeadlineExceeded.Error())
}

func TestSendMessage_StoredForLaterLookup(t *testing.T) {
	svc := newService(t, newPipeline(t, textRunner("s"), textRunner("t"), textRunner("m")))
	task := send(t, svc, "idea")

	got, err := svc.HandleGetTask(context.Background(), a2a.GetTaskRequest{ID: task.ID})
	require.NoError(t, err)
	assert.Equal(t, task.Status.State, got.Status.State)
	assert.Len(t, got.Artifacts, 4)

	_, err = svc.HandleGetTask(context.Background(), a2a.GetTaskRequest{ID: "missing"})
	var coded *a2a.CodedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, a2a.ErrCodeTaskNotFound, coded.Code)
}

func TestSendMessage_Logs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := newService(t, newPipeline(t, textRunner("s"), textRunner("t"), textRunner("m")),
		WithLogger(zap.New(core)))

	task := send(t, svc, "idea")

	entries := logs.FilterMessage("task completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, task.ID, fields["task_id"])
	assert.Equal(t, "completed", fields["state"])
	assert.NotEmpty(t, fields["run_id"])
}

func TestNew_RequiresAnalyzer(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// tasks/cancel
// ---------------------------------------------------------------------------

func TestCancelTask_CancelsRun(t *testing.T) {
	block := blockRunner{started: make(chan struct{})}
	tech := &countingRunner{}
	svc := newService(t, newPipeline(t, block, tech, textRunner("m")))

	done := make(chan *a2a.Task, 1)
	go func() {
		task, _ := svc.HandleSendMessage(context.Background(), a2a.SendMessageRequest{
			Message: a2a.NewTextMessage(a2a.RoleUser, "idea"),
		})
		done <- task
	}()

	<-block.started
	list, err := svc.HandleListTasks(context.Background(), a2a.ListTasksRequest{})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)
	id := list.Tasks[0].ID
	assert.Equal(t, a2a.TaskStateWorking, list.Tasks[0].Status.State)

	canceled, err := svc.HandleCancelTask(context.Background(), a2a.CancelTaskRequest{ID: id})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)
	assert.Equal(t, string(orchestrator.StepNotStarted), statusMetadata(t, canceled).CurrentStep)

	select {
	case task := <-done:
		require.NotNil(t, task)
		assert.Equal(t, a2a.TaskStateCanceled, task.Status.State)
		assert.Empty(t, task.Artifacts)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	assert.Zero(t, tech.calls)
}

func TestCancelTask_TerminalTask(t *testing.T) {
	svc := newService(t, newPipeline(t, textRunner("s"), textRunner("t"), textRunner("m")))
	task := send(t, svc, "idea")

	_, err := svc.HandleCancelTask(context.Background(), a2a.CancelTaskRequest{ID: task.ID})
	var coded *a2a.CodedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, a2a.ErrCodeTaskNotCancelable, coded.Code)
}

func TestCancelTask_Unknown(t *testing.T) {
	svc := newService(t, newPipeline(t, textRunner("s"), textRunner("t"), textRunner("m")))
	_, err := svc.HandleCancelTask(context.Background(), a2a.CancelTaskRequest{ID: "nope"})
	var coded *a2a.CodedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, a2a.ErrCodeTaskNotFound, coded.Code)
}

// countingRunner counts calls; only touched after the run goroutine has
// finished.
type countingRunner struct{ calls int }

func (r *countingRunner) Run(context.Context, string, []agent.Context) (string, error) {
	r.calls++
	return "x", nil
}

// ---------------------------------------------------------------------------
// message/stream
// ---------------------------------------------------------------------------

func TestStreamMessage_UpdatesThenTask(t *testing.T) {
	svc := newService(t, newPipeline(t, textRunner("s"), textRunner("t"), textRunner("m")))

	var events []a2a.StreamEvent
	err := svc.HandleStreamMessage(context.Background(), a2a.SendMessageRequest{
		Message: a2a.NewTextMessage(a2a.RoleUser, "idea"),
	}, func(ev a2a.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)

	// 4 pending, working+complete for each stage, complete for the report.
	require.Len(t, events, 4+3*2+1+1)

	var steps []string
	for _, ev := range events[:len(events)-1] {
		require.NotNil(t, ev.StatusUpdate)
		assert.Equal(t, a2a.TaskStateWorking, ev.StatusUpdate.Status.State)
		md, ok := MetadataOf(ev.StatusUpdate.Status.Message.Metadata)
		require.True(t, ok)
		steps = append(steps, md.CurrentStep)
	}
	assert.Equal(t, string(orchestrator.StepNotStarted), steps[0])
	assert.Equal(t, string(orchestrator.StepCompiled), steps[len(steps)-1])

	last := events[len(events)-1]
	require.NotNil(t, last.Task)
	assert.Equal(t, a2a.TaskStateCompleted, last.Task.Status.State)
	assert.Equal(t, last.Task.ID, events[0].StatusUpdate.TaskID)
}

func TestStreamMessage_ClientGoneCancelsRun(t *testing.T) {
	block := blockRunner{started: make(chan struct{})}
	svc := newService(t, newPipeline(t, block, textRunner("t"), textRunner("m")))

	gone := errors.New("client gone")
	var n int
	err := svc.HandleStreamMessage(context.Background(), a2a.SendMessageRequest{
		Message: a2a.NewTextMessage(a2a.RoleUser, "idea"),
	}, func(a2a.StreamEvent) error {
		n++
		return gone
	})
	require.ErrorIs(t, err, gone)
	assert.Equal(t, 1, n)

	list, err := svc.HandleListTasks(context.Background(), a2a.ListTasksRequest{})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, a2a.TaskStateCanceled, list.Tasks[0].Status.State)
}

// ---------------------------------------------------------------------------
// Over HTTP
// ---------------------------------------------------------------------------

func TestService_OverHTTP(t *testing.T) {
	svc := newService(t, newPipeline(t, textRunner("S-OUT"), textRunner("T-OUT"), textRunner("M-OUT")))
	ts := httptest.NewServer(a2a.NewServer(svc.Card("", "test"), svc).Handler())
	defer ts.Close()

	client := a2a.NewHTTPClient()
	ctx := context.Background()

	card, err := client.DiscoverAgent(ctx, ts.URL)
	require.NoError(t, err)
	assert.True(t, card.Capabilities.Streaming)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "analyze_idea", card.Skills[0].ID)

	task, err := client.SendMessage(ctx, ts.URL, a2a.SendMessageRequest{
		Message: a2a.NewTextMessage(a2a.RoleUser, "idea"),
	})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	md, ok := MetadataOf(task.Status.Message.Metadata)
	require.True(t, ok)
	assert.Equal(t, string(orchestrator.StepCompiled), md.CurrentStep)

	events, err := client.StreamMessage(ctx, ts.URL, a2a.SendMessageRequest{
		Message: a2a.NewTextMessage(a2a.RoleUser, "idea"),
	})
	require.NoError(t, err)
	var final *a2a.Task
	for ev := range events {
		require.NoError(t, ev.Err)
		if ev.Task != nil {
			final = ev.Task
		}
	}
	require.NotNil(t, final)
	assert.Len(t, final.Artifacts, 4)
}

// ---------------------------------------------------------------------------
// Generate skill
// ---------------------------------------------------------------------------

// recordingGenerator records every request and answers with reply.
type recordingGenerator struct {
	mu    sync.Mutex
	reqs  []generator.Request
	reply string
	err   error
}

func (g *recordingGenerator) Generate(_ context.Context, req generator.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	return g.reply, g.err
}

func (g *recordingGenerator) requests() []generator.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generator.Request(nil), g.reqs...)
}

// unusedAnalyzer fails the test if an analysis is started.
type unusedAnalyzer struct{ t *testing.T }

func (a unusedAnalyzer) RunWithProgress(context.Context, string, func(orchestrator.ProgressEvent)) (*orchestrator.Result, error) {
	a.t.Error("analysis started for a generate request")
	return nil, errors.New("unexpected analysis")
}

func generateRequest(t *testing.T) a2a.Message {
	t.Helper()
	msg, err := generator.NewRequestMessage(generator.Request{
		Role:        "You are the CEO.",
		Instruction: "Assess the market.",
		Temperature: 0.2,
	})
	require.NoError(t, err)
	return msg
}

func TestService_Generate_SingleCall(t *testing.T) {
	gen := &recordingGenerator{reply: "## Market\nLarge."}
	svc := newService(t, unusedAnalyzer{t}, WithGenerator(gen))

	task, err := svc.HandleSendMessage(context.Background(), a2a.SendMessageRequest{Message: generateRequest(t)})
	require.NoError(t, err)

	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, generator.GeneratedArtifact, task.Artifacts[0].Name)
	assert.Equal(t, "## Market\nLarge.", task.Artifacts[0].Text())

	assert.Equal(t, []generator.Request{{
		Role:        "You are the CEO.",
		Instruction: "Assess the market.",
		Temperature: 0.2,
	}}, gen.requests())

	md, ok := MetadataOf(task.Metadata)
	require.True(t, ok)
	assert.Equal(t, generator.SkillGenerate, md.Skill)
}

func TestService_Generate_NotEnabled(t *testing.T) {
	svc := newService(t, unusedAnalyzer{t})

	task, err := svc.HandleSendMessage(context.Background(), a2a.SendMessageRequest{Message: generateRequest(t)})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateRejected, task.Status.State)
	assert.Empty(t, task.Artifacts)
	assert.Contains(t, task.Status.Message.Text(), "not enabled")
}

func TestService_Generate_Failure(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("model overloaded")}
	svc := newService(t, unusedAnalyzer{t}, WithGenerator(gen))

	task, err := svc.HandleSendMessage(context.Background(), a2a.SendMessageRequest{Message: generateRequest(t)})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Contains(t, task.Status.Message.Text(), "model overloaded")
	assert.Len(t, gen.requests(), 1)
}

func TestService_Generate_IdeaStillAnalyzed(t *testing.T) {
	gen := &recordingGenerator{reply: "unused"}
	svc := newService(t, newPipeline(t, textRunner("S-OUT"), textRunner("T-OUT"), textRunner("M-OUT")), WithGenerator(gen))

	task := send(t, svc, "A plain idea")
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	assert.Len(t, task.Artifacts, 4)
	assert.Empty(t, gen.requests())
}

func TestService_Generate_RemoteOverHTTP(t *testing.T) {
	gen := &recordingGenerator{reply: "technical plan"}
	svc := newService(t, unusedAnalyzer{t}, WithGenerator(gen))
	ts := httptest.NewServer(a2a.NewServer(svc.Card("", "test"), svc).Handler())
	defer ts.Close()

	ctx := context.Background()
	card, err := a2a.NewHTTPClient().DiscoverAgent(ctx, ts.URL)
	require.NoError(t, err)
	require.Len(t, card.Skills, 2)
	assert.Equal(t, generator.SkillGenerate, card.Skills[1].ID)

	remote := generator.NewRemote(a2a.NewHTTPClient(), ts.URL)
	text, err := remote.Generate(ctx, generator.Request{Role: "You are the CTO.", Instruction: "Design it.", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "technical plan", text)

	reqs := gen.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "You are the CTO.", reqs[0].Role)
	assert.Equal(t, "Design it.", reqs[0].Instruction)
	assert.InDelta(t, 0.7, reqs[0].Temperature, 1e-9)
}
