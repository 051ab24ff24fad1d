package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoronkov/mediafetch/internal/domain"
	errpkg "github.com/avoronkov/mediafetch/internal/errors"
)

func TestFileRegistry_PutAndGet(t *testing.T) {
	reg := NewFileRegistry()

	entry := &domain.FileEntry{
		ID:        "abc",
		Path:      "/tmp/abc.mp4",
		Filename:  "video.mp4",
		CreatedAt: time.Now(),
	}
	reg.Put(entry)

	got, err := reg.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/abc.mp4", got.Path)
	assert.Equal(t, "video.mp4", got.Filename)
}

func TestFileRegistry_GetUnknown(t *testing.T) {
	reg := NewFileRegistry()

	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, errpkg.ErrFileNotFound)
}

func TestFileRegistry_Remove(t *testing.T) {
	reg := NewFileRegistry()
	reg.Put(&domain.FileEntry{ID: "abc", CreatedAt: time.Now()})

	reg.Remove("abc")
	reg.Remove("abc")

	_, err := reg.Get("abc")
	assert.ErrorIs(t, err, errpkg.ErrFileNotFound)
}

func TestFileRegistry_ExpiredBefore(t *testing.T) {
	reg := NewFileRegistry()
	reg.Put(&domain.FileEntry{ID: "old", CreatedAt: time.Now().Add(-3 * time.Hour)})
	reg.Put(&domain.FileEntry{ID: "fresh", CreatedAt: time.Now()})

	expired := reg.ExpiredBefore(time.Now().Add(-2 * time.Hour))
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].ID)
	assert.Equal(t, 2, reg.Len())
}
