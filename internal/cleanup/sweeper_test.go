package cleanup

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoronkov/mediafetch/internal/domain"
	errpkg "github.com/avoronkov/mediafetch/internal/errors"
	"github.com/avoronkov/mediafetch/internal/storage"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_RetentionWindow(t *testing.T) {
	tasks, err := storage.NewTaskStore("")
	require.NoError(t, err)
	files := storage.NewFileRegistry()

	dir := t.TempDir()
	createdAt := time.Now()
	retention := 2 * time.Hour

	id := uuid.New()
	path := filepath.Join(dir, id.String()+".mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))

	require.NoError(t, tasks.Create(&domain.Task{
		ID:        id,
		Status:    domain.StatusCompleted,
		CreatedAt: createdAt,
	}))
	files.Put(&domain.FileEntry{
		ID:        id.String(),
		Path:      path,
		Filename:  "video.mp4",
		CreatedAt: createdAt,
	})

	sweeper := NewSweeper(tasks, files, nil, 30*time.Minute, retention, newTestLogger())

	// Just before expiry nothing is touched.
	sweeper.now = func() time.Time { return createdAt.Add(retention - time.Minute) }
	sweeper.Sweep()

	_, err = tasks.Get(id)
	assert.NoError(t, err)
	_, err = files.Get(id.String())
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	// Just after expiry the file, the registry entry and the task all go.
	sweeper.now = func() time.Time { return createdAt.Add(retention + time.Minute) }
	sweeper.Sweep()

	_, err = tasks.Get(id)
	assert.ErrorIs(t, err, errpkg.ErrTaskNotFound)
	_, err = files.Get(id.String())
	assert.ErrorIs(t, err, errpkg.ErrFileNotFound)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "backing file must be deleted")
}

func TestSweeper_MissingFileDoesNotAbortPass(t *testing.T) {
	tasks, err := storage.NewTaskStore("")
	require.NoError(t, err)
	files := storage.NewFileRegistry()

	createdAt := time.Now().Add(-3 * time.Hour)

	gone := uuid.New()
	files.Put(&domain.FileEntry{
		ID:        gone.String(),
		Path:      filepath.Join(t.TempDir(), "already-deleted.mp4"),
		CreatedAt: createdAt,
	})
	require.NoError(t, tasks.Create(&domain.Task{ID: gone, CreatedAt: createdAt}))

	sweeper := NewSweeper(tasks, files, nil, 30*time.Minute, 2*time.Hour, newTestLogger())
	sweeper.Sweep()

	_, err = files.Get(gone.String())
	assert.ErrorIs(t, err, errpkg.ErrFileNotFound, "entry must be evicted even when the file is already gone")
	_, err = tasks.Get(gone)
	assert.ErrorIs(t, err, errpkg.ErrTaskNotFound)
}

func TestSweeper_FreshEntriesUntouched(t *testing.T) {
	tasks, err := storage.NewTaskStore("")
	require.NoError(t, err)
	files := storage.NewFileRegistry()

	id := uuid.New()
	require.NoError(t, tasks.Create(&domain.Task{ID: id, CreatedAt: time.Now()}))

	sweeper := NewSweeper(tasks, files, nil, 30*time.Minute, 2*time.Hour, newTestLogger())
	sweeper.Sweep()

	_, err = tasks.Get(id)
	assert.NoError(t, err)
}

func TestSweeper_StartStop(t *testing.T) {
	tasks, err := storage.NewTaskStore("")
	require.NoError(t, err)

	sweeper := NewSweeper(tasks, storage.NewFileRegistry(), nil, 10*time.Millisecond, time.Hour, newTestLogger())
	sweeper.Start()
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
}
