package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryan-buckman/readdeck/internal/model"
)

// taskHistory is how many finished tasks are kept for the footer.
const taskHistory = 20

// TasksStore tracks background work such as feed refreshes.
type TasksStore struct {
	notifier

	mu    sync.RWMutex
	tasks []model.Task
}

// NewTasksStore creates an empty tasks store.
func NewTasksStore() *TasksStore {
	return &TasksStore{}
}

// Start records a running task and returns its id.
func (s *TasksStore) Start(name string) string {
	t := model.Task{
		ID:        uuid.NewString(),
		Name:      name,
		State:     model.TaskRunning,
		StartedAt: time.Now(),
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	s.notify()
	return t.ID
}

// Finish marks a task done, or failed when err is non-nil. Unknown ids are ignored.
func (s *TasksStore) Finish(id string, err error) {
	s.mu.Lock()
	found := false
	for i := range s.tasks {
		if s.tasks[i].ID != id || !s.tasks[i].Active() {
			continue
		}
		s.tasks[i].FinishedAt = time.Now()
		if err != nil {
			s.tasks[i].State = model.TaskFailed
			s.tasks[i].Error = err.Error()
		} else {
			s.tasks[i].State = model.TaskDone
		}
		found = true
	}
	s.trim()
	s.mu.Unlock()
	if found {
		s.notify()
	}
}

// trim drops the oldest finished tasks beyond the history limit.
// Callers hold mu.
func (s *TasksStore) trim() {
	finished := 0
	for _, t := range s.tasks {
		if !t.Active() {
			finished++
		}
	}
	drop := finished - taskHistory
	if drop <= 0 {
		return
	}
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if drop > 0 && !t.Active() {
			drop--
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
}

// Snapshot returns running tasks first, then finished tasks newest first.
func (s *TasksStore) Snapshot() []model.Task {
	s.mu.RLock()
	out := append([]model.Task(nil), s.tasks...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Active() != out[j].Active() {
			return out[i].Active()
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Running returns the number of unfinished tasks.
func (s *TasksStore) Running() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tasks {
		if t.Active() {
			n++
		}
	}
	return n
}
