package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a download task.
type TaskStatus string

const (
	StatusQueued      TaskStatus = "queued"
	StatusDownloading TaskStatus = "downloading"
	StatusConverting  TaskStatus = "converting"
	StatusCompleted   TaskStatus = "completed"
	StatusFailed      TaskStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one asynchronous download/convert job. A record is created in the
// queued state, mutated by exactly one worker until it reaches a terminal
// state, and read concurrently by the progress endpoint.
type Task struct {
	ID           uuid.UUID  `json:"task_id"`
	URL          string     `json:"url"`
	FormatID     string     `json:"format_id"`
	ConvertToMP3 bool       `json:"convert_to_mp3"`
	Status       TaskStatus `json:"status"`
	Progress     float64    `json:"progress"`
	ETASeconds   int        `json:"eta,omitempty"`
	SpeedBps     float64    `json:"speed,omitempty"`
	Error        string     `json:"error,omitempty"`
	FileID       string     `json:"file_id,omitempty"`
	FileURL      string     `json:"file_url,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TaskPatch is a partial update merged into an existing task record.
// Nil fields are left untouched.
type TaskPatch struct {
	Status     *TaskStatus
	Progress   *float64
	ETASeconds *int
	SpeedBps   *float64
	Error      *string
	FileID     *string
	FileURL    *string
	Filename   *string
}
