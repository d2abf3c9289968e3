package a2a

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(id, contextID string, state TaskState) Task {
	return Task{
		ID:        id,
		ContextID: contextID,
		Status:    TaskStatus{State: state, Timestamp: time.Now()},
	}
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	s := NewTaskStore()
	require.NoError(t, s.Create(newTestTask("t1", "c1", TaskStateSubmitted)))

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, TaskStateSubmitted, got.Status.State)
}

func TestTaskStore_CreateDuplicate(t *testing.T) {
	s := NewTaskStore()
	require.NoError(t, s.Create(newTestTask("t1", "", TaskStateSubmitted)))
	err := s.Create(newTestTask("t1", "", TaskStateSubmitted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestTaskStore_GetUnknownHasTaskNotFoundCode(t *testing.T) {
	s := NewTaskStore()
	_, err := s.Get("missing")
	require.Error(t, err)

	var coded *CodedError
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, ErrCodeTaskNotFound, coded.Code)
}

func TestTaskStore_GetReturnsIsolatedCopy(t *testing.T) {
	s := NewTaskStore()
	task := newTestTask("t1", "", TaskStateCompleted)
	task.Artifacts = []Artifact{{Name: "final_report", Parts: []Part{TextPart("original")}}}
	require.NoError(t, s.Create(task))

	got, err := s.Get("t1")
	require.NoError(t, err)
	got.Artifacts[0].Parts[0].Text = "mutated"

	again, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Artifacts[0].Parts[0].Text)

	// The caller's value passed to Create is not aliased either.
	task.Artifacts[0].Parts[0].Text = "changed after create"
	again, err = s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Artifacts[0].Parts[0].Text)
}

func TestTaskStore_Update(t *testing.T) {
	s := NewTaskStore()
	require.NoError(t, s.Create(newTestTask("t1", "", TaskStateSubmitted)))

	updated, err := s.Update("t1", func(task *Task) {
		task.Status.State = TaskStateWorking
	})
	require.NoError(t, err)
	assert.Equal(t, TaskStateWorking, updated.Status.State)

	_, err = s.Update("missing", func(*Task) {})
	require.Error(t, err)
}

func TestTaskStore_ListFiltersAndPaginates(t *testing.T) {
	s := NewTaskStore()
	for i := 0; i < 5; i++ {
		state := TaskStateCompleted
		if i%2 == 1 {
			state = TaskStateFailed
		}
		require.NoError(t, s.Create(newTestTask(fmt.Sprintf("t%d", i), "ctx", state)))
	}
	require.NoError(t, s.Create(newTestTask("other", "elsewhere", TaskStateCompleted)))

	all, err := s.List(ListTasksRequest{ContextID: "ctx"})
	require.NoError(t, err)
	assert.Len(t, all.Tasks, 5)
	assert.Equal(t, 5, all.TotalSize)
	assert.Empty(t, all.NextPageToken)

	failed, err := s.List(ListTasksRequest{Status: string(TaskStateFailed)})
	require.NoError(t, err)
	require.Len(t, failed.Tasks, 2)
	assert.Equal(t, "t1", failed.Tasks[0].ID)
	assert.Equal(t, "t3", failed.Tasks[1].ID)

	page1, err := s.List(ListTasksRequest{ContextID: "ctx", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page1.Tasks, 2)
	assert.Equal(t, "t1", page1.NextPageToken)

	page2, err := s.List(ListTasksRequest{ContextID: "ctx", PageSize: 2, PageToken: page1.NextPageToken})
	require.NoError(t, err)
	require.Len(t, page2.Tasks, 2)
	assert.Equal(t, "t2", page2.Tasks[0].ID)
	assert.Equal(t, 5, page2.TotalSize)
}

func TestTaskStore_ListInvalidPageToken(t *testing.T) {
	s := NewTaskStore()
	_, err := s.List(ListTasksRequest{PageToken: "nope"})
	require.Error(t, err)
}

func TestTaskStore_ListEmptyIsNonNil(t *testing.T) {
	resp, err := NewTaskStore().List(ListTasksRequest{})
	require.NoError(t, err)
	assert.NotNil(t, resp.Tasks)
	assert.Empty(t, resp.Tasks)
}

func TestTaskStore_ConcurrentAccess(t *testing.T) {
	s := NewTaskStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i)
			_ = s.Create(newTestTask(id, "", TaskStateSubmitted))
			_, _ = s.Update(id, func(task *Task) { task.Status.State = TaskStateCompleted })
			_, _ = s.Get(id)
			_, _ = s.List(ListTasksRequest{})
		}(i)
	}
	wg.Wait()

	resp, err := s.List(ListTasksRequest{Status: string(TaskStateCompleted)})
	require.NoError(t, err)
	assert.Len(t, resp.Tasks, 20)
}
