package cleanup

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/avoronkov/mediafetch/internal/extract"
	"github.com/avoronkov/mediafetch/internal/metrics"
	"github.com/avoronkov/mediafetch/internal/storage"
)

// Sweeper periodically evicts task records and produced files older than the
// retention window, and purges stale info-cache entries. File deletion is
// best-effort: a failed unlink is logged and the registry entry is dropped
// anyway so the sweep never wedges on one bad file.
type Sweeper struct {
	tasks     *storage.TaskStore
	files     *storage.FileRegistry
	infoCache *extract.InfoCache

	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	now  func() time.Time
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSweeper creates a sweeper over the given stores.
func NewSweeper(
	tasks *storage.TaskStore,
	files *storage.FileRegistry,
	infoCache *extract.InfoCache,
	interval time.Duration,
	retention time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		tasks:     tasks,
		files:     files,
		infoCache: infoCache,
		interval:  interval,
		retention: retention,
		logger:    logger,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()

	s.logger.Info("cleanup sweeper started", "interval", s.interval, "retention", s.retention)
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// Sweep runs one eviction pass. For each expired file entry the backing file
// is deleted, then the registry entry, then the task record, so an entry is
// never left pointing at a deleted file across passes.
func (s *Sweeper) Sweep() {
	cutoff := s.now().Add(-s.retention)

	removedFiles := 0
	for _, entry := range s.files.ExpiredBefore(cutoff) {
		if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to remove expired file", "path", entry.Path, "error", err)
		} else {
			s.logger.Info("removed expired file", "file_id", entry.ID, "path", entry.Path)
		}

		s.files.Remove(entry.ID)
		metrics.FilesSwept.Inc()
		removedFiles++
	}

	removedTasks := 0
	for _, task := range s.tasks.ExpiredBefore(cutoff) {
		s.tasks.Remove(task.ID)
		removedTasks++
	}

	purged := 0
	if s.infoCache != nil {
		purged = s.infoCache.Purge(s.now())
	}

	if removedFiles > 0 || removedTasks > 0 || purged > 0 {
		s.logger.Info("cleanup pass finished",
			"files_removed", removedFiles,
			"tasks_removed", removedTasks,
			"cache_purged", purged,
		)
	}
}
