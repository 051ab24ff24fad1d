package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avoronkov/mediafetch/internal/domain"
	errpkg "github.com/avoronkov/mediafetch/internal/errors"
)

// TaskStore is the process-wide task table: an in-memory map keyed by task id
// with optional JSON state-file persistence. Each task is written by at most
// one worker goroutine; the store serializes access with a single RWMutex.
//
// Terminal records are frozen: Apply is a no-op once a task has reached
// completed or failed, so late progress events from the extraction engine
// cannot mutate a finished task.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
	file  string
}

// NewTaskStore creates a TaskStore. If stateFile is non-empty, previously
// persisted tasks are restored from it and mutations are written back;
// an empty path keeps the store memory-only.
func NewTaskStore(stateFile string) (*TaskStore, error) {
	s := &TaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
	if stateFile != "" {
		s.file = filepath.Clean(stateFile)
	}

	if err := s.restore(); err != nil {
		return nil, fmt.Errorf("failed to load state from file: %w", err)
	}

	if s.file != "" {
		slog.Info("task store initialized", "state_file", s.file, "tasks_count", len(s.tasks))
	}
	return s, nil
}

func (s *TaskStore) restore() error {
	if s.file == "" {
		return nil
	}

	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var tasks []*domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	for _, task := range tasks {
		s.tasks[task.ID] = task
	}

	slog.Info("state loaded from file", "tasks_count", len(tasks), "file_path", s.file)
	return nil
}

func (s *TaskStore) persistLocked() error {
	if s.file == "" {
		return nil
	}

	tasks := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}

	tempFile := s.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, s.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// Create inserts a new task record. Returns ErrDuplicateTask if the id is
// already present.
func (s *TaskStore) Create(task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return errpkg.ErrDuplicateTask
	}

	stored := *task
	s.tasks[task.ID] = &stored

	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("failed to save state after creating task: %w", err)
	}

	slog.Debug("task created", "task_id", task.ID)
	return nil
}

// Get returns a copy of the task record, or ErrTaskNotFound.
func (s *TaskStore) Get(id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, errpkg.ErrTaskNotFound
	}

	copied := *task
	return &copied, nil
}

// Apply merges a partial update into an existing task. It returns
// ErrTaskNotFound if the id is absent and silently ignores updates to tasks
// already in a terminal state. Progress is kept monotonically non-decreasing.
//
// Only terminal transitions are persisted to the state file; intermediate
// progress patches arrive many times per second and stay in memory.
func (s *TaskStore) Apply(id uuid.UUID, patch domain.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return errpkg.ErrTaskNotFound
	}

	if task.Status.IsTerminal() {
		return nil
	}

	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Progress != nil && *patch.Progress > task.Progress {
		task.Progress = *patch.Progress
	}
	if patch.ETASeconds != nil {
		task.ETASeconds = *patch.ETASeconds
	}
	if patch.SpeedBps != nil {
		task.SpeedBps = *patch.SpeedBps
	}
	if patch.Error != nil {
		task.Error = *patch.Error
	}
	if patch.FileID != nil {
		task.FileID = *patch.FileID
	}
	if patch.FileURL != nil {
		task.FileURL = *patch.FileURL
	}
	if patch.Filename != nil {
		task.Filename = *patch.Filename
	}
	task.UpdatedAt = time.Now()

	if patch.Status != nil && patch.Status.IsTerminal() {
		if err := s.persistLocked(); err != nil {
			return fmt.Errorf("failed to save state after updating task: %w", err)
		}
	}

	return nil
}

// Remove deletes a task record. Removing an absent id is a no-op.
func (s *TaskStore) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return
	}
	delete(s.tasks, id)

	if err := s.persistLocked(); err != nil {
		slog.Error("failed to save state after removing task", "task_id", id, "error", err)
	}
}

// ExpiredBefore returns copies of all tasks created before the cutoff.
func (s *TaskStore) ExpiredBefore(cutoff time.Time) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []domain.Task
	for _, task := range s.tasks {
		if task.CreatedAt.Before(cutoff) {
			expired = append(expired, *task)
		}
	}
	return expired
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
