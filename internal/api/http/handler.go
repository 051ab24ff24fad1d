package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/avoronkov/mediafetch/internal/domain"
	errpkg "github.com/avoronkov/mediafetch/internal/errors"
	"github.com/avoronkov/mediafetch/internal/validation"
)

// Version is reported by the health endpoint.
const Version = "2.1.0"

// TaskServiceI defines the interface for task-related business logic.
type TaskServiceI interface {
	Info(ctx context.Context, url string) (*domain.VideoInfo, error)
	Submit(ctx context.Context, req *domain.DownloadRequest) (*domain.Task, error)
	Task(id uuid.UUID) (*domain.Task, error)
	File(id string) (*domain.FileEntry, error)
	EngineVersion(ctx context.Context) string
}

// TaskHandler handles HTTP requests for media info, downloads and files.
type TaskHandler struct {
	taskService TaskServiceI
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the provided service and logger.
func NewTaskHandler(taskService TaskServiceI, logger *slog.Logger) *TaskHandler {
	v := validator.New()
	if err := validation.Register(v); err != nil {
		logger.Error("failed to register custom validators", "error", err)
	}

	return &TaskHandler{
		taskService: taskService,
		validator:   v,
		logger:      logger,
	}
}

// Info handles POST /api/info: resolve a media URL to its format metadata.
func (h *TaskHandler) Info(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.InfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("info request validation failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadRequest, "invalid URL")
		return
	}

	info, err := h.taskService.Info(ctx, req.URL)
	if err != nil {
		h.logger.Error("failed to extract info", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "Could not fetch video information")
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Download handles POST /api/download: create a task and dispatch a worker.
func (h *TaskHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if req.FormatID == "" {
		writeError(w, http.StatusBadRequest, "Format ID is required")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("download request validation failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadRequest, "invalid URL")
		return
	}

	task, err := h.taskService.Submit(ctx, &req)
	if err != nil {
		h.logger.Error("failed to submit task", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, domain.SubmitResponse{
		TaskID: task.ID,
		Status: task.Status,
	})
}

// Progress handles GET /api/progress/{taskID}: return the full task record.
func (h *TaskHandler) Progress(w http.ResponseWriter, r *http.Request) {
	taskIDStr := chi.URLParam(r, "taskID")
	taskID, err := uuid.Parse(taskIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	task, err := h.taskService.Task(taskID)
	if err != nil {
		if errors.Is(err, errpkg.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		h.logger.Error("failed to get task", "task_id", taskID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// ServeFile handles GET /api/files/{fileID}: stream the produced artifact as
// an attachment with its stored display filename.
func (h *TaskHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	entry, err := h.taskService.File(fileID)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	f, err := os.Open(entry.Path)
	if err != nil {
		h.logger.Error("registered file missing on disk", "file_id", fileID, "path", entry.Path, "error", err)
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		h.logger.Error("failed to stat file", "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", mimeForFilename(entry.Filename))
	w.Header().Set("Content-Disposition", `attachment; filename="`+entry.Filename+`"`)
	http.ServeContent(w, r, entry.Filename, stat.ModTime(), f)
}

// Health handles GET /api/health.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.HealthResponse{
		Status:        "ok",
		Version:       Version,
		EngineVersion: h.taskService.EngineVersion(r.Context()),
	})
}

func mimeForFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
