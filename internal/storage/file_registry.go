package storage

import (
	"sync"
	"time"

	"github.com/avoronkov/mediafetch/internal/domain"
	errpkg "github.com/avoronkov/mediafetch/internal/errors"
)

// FileRegistry maps file ids to produced artifacts on disk. Entries are added
// by workers on task completion and removed by the cleanup sweeper together
// with their backing files.
type FileRegistry struct {
	mu    sync.RWMutex
	files map[string]*domain.FileEntry
}

// NewFileRegistry creates an empty file registry.
func NewFileRegistry() *FileRegistry {
	return &FileRegistry{
		files: make(map[string]*domain.FileEntry),
	}
}

// Put registers a produced artifact, replacing any existing entry for the id.
func (r *FileRegistry) Put(entry *domain.FileEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entry
	r.files[entry.ID] = &stored
}

// Get returns a copy of the entry, or ErrFileNotFound.
func (r *FileRegistry) Get(id string) (*domain.FileEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.files[id]
	if !exists {
		return nil, errpkg.ErrFileNotFound
	}

	copied := *entry
	return &copied, nil
}

// Remove deletes an entry. Removing an absent id is a no-op.
func (r *FileRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
}

// ExpiredBefore returns copies of all entries created before the cutoff.
func (r *FileRegistry) ExpiredBefore(cutoff time.Time) []domain.FileEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []domain.FileEntry
	for _, entry := range r.files {
		if entry.CreatedAt.Before(cutoff) {
			expired = append(expired, *entry)
		}
	}
	return expired
}

// Len returns the number of registered files.
func (r *FileRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}
