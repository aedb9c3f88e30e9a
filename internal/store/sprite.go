package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryan-buckman/readdeck/internal/model"
)

// SpriteStore holds the assistant sprite's mood and speech bubble.
type SpriteStore struct {
	notifier

	mu     sync.RWMutex
	sprite model.Sprite
}

// NewSpriteStore creates an idle sprite.
func NewSpriteStore() *SpriteStore {
	return &SpriteStore{sprite: model.Sprite{State: model.SpriteIdle, Message: "Nothing to do.", UpdatedAt: time.Now()}}
}

// Sprite returns the current snapshot.
func (s *SpriteStore) Sprite() model.Sprite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sprite
}

// Set changes the sprite. Setting the same state and message is a no-op.
func (s *SpriteStore) Set(state model.SpriteState, msg string) {
	s.mu.Lock()
	if s.sprite.State == state && s.sprite.Message == msg {
		s.mu.Unlock()
		return
	}
	s.sprite = model.Sprite{State: state, Message: msg, UpdatedAt: time.Now()}
	s.mu.Unlock()
	s.notify()
}

// Follow keeps the sprite in step with task activity until ctx is done.
func (s *SpriteStore) Follow(ctx context.Context, tasks *TasksStore) {
	ch, cancel := tasks.Subscribe()
	defer cancel()
	s.Set(spriteFor(tasks.Snapshot()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.Set(spriteFor(tasks.Snapshot()))
		}
	}
}

// spriteFor derives the sprite from a tasks snapshot ordered as
// TasksStore.Snapshot returns it.
func spriteFor(tasks []model.Task) (model.SpriteState, string) {
	if len(tasks) == 0 {
		return model.SpriteIdle, "Nothing to do."
	}
	t := tasks[0]
	switch t.State {
	case model.TaskPending, model.TaskRunning:
		return model.SpriteWorking, fmt.Sprintf("Working on %s…", t.Name)
	case model.TaskFailed:
		return model.SpriteError, fmt.Sprintf("%s failed: %s", t.Name, t.Error)
	case model.TaskDone:
		return model.SpriteHappy, fmt.Sprintf("%s finished.", t.Name)
	}
	return model.SpriteIdle, "Nothing to do."
}
