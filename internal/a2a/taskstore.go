package a2a

import (
	"encoding/json"
	"fmt"
	"sync"
)

// TaskStore is a concurrency-safe in-memory store of tasks for the lifetime
// of one server process. A separate slice keeps insertion order for
// deterministic pagination.
type TaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	orderIDs []string
}

// NewTaskStore returns an initialized TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
	}
}

// Create stores a new task. It returns an error if the ID is already taken.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %q already exists", task.ID)
	}
	s.tasks[task.ID] = deepCopyTask(&task)
	s.orderIDs = append(s.orderIDs, task.ID)
	return nil
}

// Get returns a deep copy of the task with the given ID.
func (s *TaskStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound(id)
	}
	return deepCopyTask(t), nil
}

// Update applies fn to the stored task under the write lock and returns a
// copy of the result.
func (s *TaskStore) Update(id string, fn func(*Task)) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound(id)
	}
	fn(t)
	return deepCopyTask(t), nil
}

// List returns tasks matching the filter in insertion order.
//
// PageToken is the ID of the last task of the previous page. PageSize <= 0
// returns every match.
func (s *TaskStore) List(filter ListTasksRequest) (*ListTasksResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startIdx := 0
	if filter.PageToken != "" {
		startIdx = -1
		for i, id := range s.orderIDs {
			if id == filter.PageToken {
				startIdx = i + 1
				break
			}
		}
		if startIdx < 0 {
			return nil, &CodedError{Code: ErrCodeInvalidParams, Err: fmt.Errorf("invalid page token %q", filter.PageToken)}
		}
	}

	total := 0
	matched := []Task{}
	for i, id := range s.orderIDs {
		t := s.tasks[id]
		if !matchesFilter(t, filter) {
			continue
		}
		total++
		if i >= startIdx {
			matched = append(matched, *deepCopyTask(t))
		}
	}

	var next string
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		next = matched[filter.PageSize-1].ID
		matched = matched[:filter.PageSize]
	}

	return &ListTasksResponse{
		Tasks:         matched,
		TotalSize:     total,
		NextPageToken: next,
	}, nil
}

func notFound(id string) error {
	return &CodedError{Code: ErrCodeTaskNotFound, Err: fmt.Errorf("task %q not found", id)}
}

func matchesFilter(t *Task, filter ListTasksRequest) bool {
	if filter.ContextID != "" && t.ContextID != filter.ContextID {
		return false
	}
	if filter.Status != "" && string(t.Status.State) != filter.Status {
		return false
	}
	return true
}

// deepCopyTask returns a copy of src that shares no slices with it.
func deepCopyTask(src *Task) *Task {
	dst := *src

	if src.Artifacts != nil {
		dst.Artifacts = make([]Artifact, len(src.Artifacts))
		for i, a := range src.Artifacts {
			a.Parts = copyParts(a.Parts)
			dst.Artifacts[i] = a
		}
	}
	if src.History != nil {
		dst.History = make([]Message, len(src.History))
		for i, m := range src.History {
			dst.History[i] = copyMessage(m)
		}
	}
	dst.Metadata = copyRaw(src.Metadata)
	if src.Status.Message != nil {
		m := copyMessage(*src.Status.Message)
		dst.Status.Message = &m
	}
	return &dst
}

func copyMessage(src Message) Message {
	dst := src
	dst.Parts = copyParts(src.Parts)
	dst.Metadata = copyRaw(src.Metadata)
	return dst
}

func copyParts(src []Part) []Part {
	if src == nil {
		return nil
	}
	dst := make([]Part, len(src))
	for i, p := range src {
		p.Data = copyRaw(p.Data)
		dst[i] = p
	}
	return dst
}

func copyRaw(src json.RawMessage) json.RawMessage {
	if src == nil {
		return nil
	}
	dst := make(json.RawMessage, len(src))
	copy(dst, src)
	return dst
}
