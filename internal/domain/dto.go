package domain

import "github.com/google/uuid"

// InfoRequest is the body of POST /api/info.
type InfoRequest struct {
	URL string `json:"url" validate:"required,safe_url"`
}

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	URL          string `json:"url" validate:"required,safe_url"`
	FormatID     string `json:"format_id" validate:"required"`
	ConvertToMP3 bool   `json:"convert_to_mp3"`
}

// SubmitResponse acknowledges an accepted download task.
type SubmitResponse struct {
	TaskID uuid.UUID  `json:"task_id"`
	Status TaskStatus `json:"status"`
}

// HealthResponse reports service and extraction engine versions.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	EngineVersion string `json:"engine_version"`
}
