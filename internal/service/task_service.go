package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avoronkov/mediafetch/internal/domain"
	"github.com/avoronkov/mediafetch/internal/extract"
	"github.com/avoronkov/mediafetch/internal/metrics"
	"github.com/avoronkov/mediafetch/internal/storage"
	"github.com/avoronkov/mediafetch/internal/worker"
)

// TaskService is the facade the HTTP layer talks to: metadata lookups,
// task submission and polling, artifact lookup.
type TaskService struct {
	tasks     *storage.TaskStore
	files     *storage.FileRegistry
	infoCache *extract.InfoCache
	engine    extract.Engine
	worker    *worker.DownloadWorker
	logger    *slog.Logger

	wg sync.WaitGroup

	versionOnce sync.Once
	version     string
}

// NewTaskService wires the service over its stores, cache and worker.
func NewTaskService(
	tasks *storage.TaskStore,
	files *storage.FileRegistry,
	infoCache *extract.InfoCache,
	engine extract.Engine,
	w *worker.DownloadWorker,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		tasks:     tasks,
		files:     files,
		infoCache: infoCache,
		engine:    engine,
		worker:    w,
		logger:    logger,
	}
}

// Info returns format metadata for a URL, served from the TTL cache when
// fresh.
func (s *TaskService) Info(ctx context.Context, url string) (*domain.VideoInfo, error) {
	return s.infoCache.Info(ctx, url)
}

// Submit creates a queued task record and dispatches a worker goroutine for
// it. The worker runs detached from the request context: once dispatched, a
// task runs to a terminal state regardless of the submitting connection.
func (s *TaskService) Submit(ctx context.Context, req *domain.DownloadRequest) (*domain.Task, error) {
	now := time.Now()
	task := &domain.Task{
		ID:           uuid.New(),
		URL:          req.URL,
		FormatID:     req.FormatID,
		ConvertToMP3: req.ConvertToMP3,
		Status:       domain.StatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.tasks.Create(task); err != nil {
		return nil, err
	}
	metrics.TasksCreated.Inc()

	s.logger.Info("task queued",
		"task_id", task.ID,
		"url", task.URL,
		"format_id", task.FormatID,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker.Run(context.Background(), task.ID)
	}()

	return task, nil
}

// Task returns the current task record by id.
func (s *TaskService) Task(id uuid.UUID) (*domain.Task, error) {
	return s.tasks.Get(id)
}

// File returns the registry entry for a produced artifact.
func (s *TaskService) File(id string) (*domain.FileEntry, error) {
	return s.files.Get(id)
}

// EngineVersion returns the extraction engine version, resolved once and
// cached for the process lifetime.
func (s *TaskService) EngineVersion(ctx context.Context) string {
	s.versionOnce.Do(func() {
		v, err := s.engine.Version(ctx)
		if err != nil {
			s.logger.Warn("failed to query engine version", "error", err)
			v = "unknown"
		}
		s.version = v
	})
	return s.version
}

// Shutdown waits for in-flight workers to finish or the context to expire.
func (s *TaskService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("task service shutdown completed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("task service shutdown timed out")
		return ctx.Err()
	}
}
