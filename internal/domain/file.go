package domain

import "time"

// FileEntry records one produced artifact. The file id equals the task id
// that produced it; the backing file stays on disk until the cleanup sweep
// removes both the file and the entry in the same pass.
type FileEntry struct {
	ID        string    `json:"file_id"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}
