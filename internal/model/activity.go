package model

import "time"

// TaskState is the lifecycle stage of a background task.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskRunning TaskState = "running"
	TaskDone    TaskState = "done"
	TaskFailed  TaskState = "failed"
)

// Task is a unit of background work shown in the footer.
type Task struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	State      TaskState `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Active reports whether the task has not finished yet.
func (t Task) Active() bool {
	return t.State == TaskPending || t.State == TaskRunning
}

// SpriteState is the mood shown by the assistant sprite.
type SpriteState string

const (
	SpriteIdle    SpriteState = "idle"
	SpriteWorking SpriteState = "working"
	SpriteHappy   SpriteState = "happy"
	SpriteError   SpriteState = "error"
)

// Sprite is the current assistant sprite snapshot.
type Sprite struct {
	State     SpriteState `json:"state"`
	Message   string      `json:"message"`
	UpdatedAt time.Time   `json:"updated_at"`
}
