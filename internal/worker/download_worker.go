package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avoronkov/mediafetch/internal/domain"
	errpkg "github.com/avoronkov/mediafetch/internal/errors"
	"github.com/avoronkov/mediafetch/internal/extract"
	"github.com/avoronkov/mediafetch/internal/metrics"
	"github.com/avoronkov/mediafetch/internal/storage"
	"github.com/avoronkov/mediafetch/internal/transcode"
)

// maxFilenameLen bounds the sanitized display filename (sans extension).
const maxFilenameLen = 100

// probeExtensions are checked when the engine-reported path is missing;
// post-processing may have changed the extension.
var probeExtensions = []string{".mp3", ".mp4", ".webm", ".mkv", ".m4a"}

// nativeAudioHosts are platforms where the extraction engine's own audio
// extraction is preferred over a local transcode.
var nativeAudioHosts = []string{"youtube", "soundcloud", "vimeo"}

var unsafeFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// DownloadWorker runs one task from dispatch to a terminal state. Exactly one
// worker goroutine owns a task id; the worker is the only writer for that
// record apart from the cleanup sweeper, which only acts on records hours old.
//
// State machine:
//
//	queued -> downloading -> completed | failed
//	queued -> downloading -> converting -> completed
//
// Conversion failure after a successful download is not fatal: the original
// artifact is still served and the error field carries an advisory message.
type DownloadWorker struct {
	tasks       *storage.TaskStore
	files       *storage.FileRegistry
	engine      extract.Engine
	transcoder  transcode.AudioTranscoder
	downloadDir string
	logger      *slog.Logger
}

// NewDownloadWorker creates a worker bound to the given stores and tools.
func NewDownloadWorker(
	tasks *storage.TaskStore,
	files *storage.FileRegistry,
	engine extract.Engine,
	transcoder transcode.AudioTranscoder,
	downloadDir string,
	logger *slog.Logger,
) *DownloadWorker {
	return &DownloadWorker{
		tasks:       tasks,
		files:       files,
		engine:      engine,
		transcoder:  transcoder,
		downloadDir: downloadDir,
		logger:      logger,
	}
}

// Run processes the task until it reaches a terminal state. It never returns
// an error: every failure is recorded on the task record instead.
func (w *DownloadWorker) Run(ctx context.Context, id uuid.UUID) {
	defer func() {
		// A panic in a detached goroutine would take the process down.
		if r := recover(); r != nil {
			w.logger.Error("worker panic", "task_id", id, "panic", r)
			w.fail(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	task, err := w.tasks.Get(id)
	if err != nil {
		w.logger.Error("task vanished before dispatch", "task_id", id, "error", err)
		return
	}

	start := time.Now()
	w.setStatus(id, domain.StatusDownloading)

	w.logger.Info("task started",
		"task_id", id,
		"url", task.URL,
		"format_id", task.FormatID,
		"convert_to_mp3", task.ConvertToMP3,
	)

	if task.ConvertToMP3 && !isNativeAudioHost(task.URL) {
		if w.tryStreamConvert(ctx, task) {
			metrics.DownloadDuration.Observe(time.Since(start).Seconds())
			return
		}
		metrics.ConversionFallbacks.Inc()
		w.logger.Warn("direct streaming failed, falling back to standard download", "task_id", id)
	}

	w.downloadAndFinish(ctx, task)
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
}

// tryStreamConvert attempts the optimized conversion path: resolve the direct
// media URL and let the transcoder pull from it in one pass. Returns false on
// any error so the caller can fall back to download-then-transcode.
func (w *DownloadWorker) tryStreamConvert(ctx context.Context, task *domain.Task) bool {
	directURL, err := w.engine.ResolveDirectURL(ctx, task.URL, task.FormatID)
	if err != nil {
		w.logger.Warn("direct url resolution failed", "task_id", task.ID, "error", err)
		return false
	}

	outputPath := filepath.Join(w.downloadDir, task.ID.String()+".mp3")
	if err := w.transcoder.FromStream(ctx, directURL, outputPath); err != nil {
		w.logger.Warn("stream transcode failed", "task_id", task.ID, "error", err)
		return false
	}

	title := "audio"
	if info, err := w.engine.Info(ctx, task.URL); err == nil && info.Title != "" {
		title = info.Title
	}

	w.complete(task.ID, outputPath, SanitizeFilename(title)+".mp3", "")
	return true
}

// downloadAndFinish runs the standard path: engine download with progress
// events, artifact location, optional local transcode, completion.
func (w *DownloadWorker) downloadAndFinish(ctx context.Context, task *domain.Task) {
	native := task.ConvertToMP3 && isNativeAudioHost(task.URL)

	res, err := w.engine.Download(ctx, extract.DownloadRequest{
		URL:            task.URL,
		FormatID:       task.FormatID,
		OutputTemplate: filepath.Join(w.downloadDir, task.ID.String()+".%(ext)s"),
		ExtractAudio:   native,
		OnProgress:     w.progressReporter(task.ID),
	})
	if err != nil {
		w.fail(task.ID, err.Error())
		return
	}

	candidate := res.Path
	if native && candidate != "" {
		// The engine's audio post-processing rewrites the extension.
		candidate = strings.TrimSuffix(candidate, filepath.Ext(candidate)) + ".mp3"
	}

	path := w.locateArtifact(candidate, task.ID)
	if path == "" {
		w.fail(task.ID, "file not found after download")
		return
	}

	title := res.Title
	if title == "" {
		title = "video"
	}
	ext := filepath.Ext(path)

	advisory := ""
	if task.ConvertToMP3 && !native && !strings.EqualFold(ext, ".mp3") {
		w.setStatus(task.ID, domain.StatusConverting)
		w.setProgress(task.ID, 99)

		mp3Path := strings.TrimSuffix(path, ext) + ".mp3"
		if convErr := w.transcoder.ToMP3(ctx, path, mp3Path); convErr != nil {
			metrics.ConversionsFailed.Inc()
			advisory = fmt.Sprintf("mp3 conversion failed: %v", convErr)
			w.logger.Error("conversion failed, serving original artifact",
				"task_id", task.ID,
				"error", convErr,
			)
		} else {
			if err := os.Remove(path); err != nil {
				w.logger.Warn("failed to remove pre-conversion file", "path", path, "error", err)
			}
			path = mp3Path
			ext = ".mp3"
		}
	}

	w.complete(task.ID, path, SanitizeFilename(title)+ext, advisory)
}

// locateArtifact verifies the engine-reported path and probes known
// extensions next to the task's output base when it is missing.
func (w *DownloadWorker) locateArtifact(candidate string, id uuid.UUID) string {
	if candidate != "" && fileExists(candidate) {
		return candidate
	}

	base := filepath.Join(w.downloadDir, id.String())
	for _, ext := range probeExtensions {
		if fileExists(base + ext) {
			return base + ext
		}
	}
	return ""
}

// progressReporter returns the callback registered with the extraction
// engine. Events for tasks already terminal (or already swept) are no-ops.
func (w *DownloadWorker) progressReporter(id uuid.UUID) extract.ProgressFunc {
	return func(p extract.Progress) {
		pct := ProgressPercent(p)
		patch := domain.TaskPatch{Progress: &pct}
		if p.ETASeconds > 0 {
			eta := p.ETASeconds
			patch.ETASeconds = &eta
		}
		if p.SpeedBps > 0 {
			speed := p.SpeedBps
			patch.SpeedBps = &speed
		}

		if err := w.tasks.Apply(id, patch); err != nil && !errors.Is(err, errpkg.ErrTaskNotFound) {
			w.logger.Error("failed to record progress", "task_id", id, "error", err)
		}
	}
}

func (w *DownloadWorker) complete(id uuid.UUID, path, filename, advisory string) {
	w.files.Put(&domain.FileEntry{
		ID:        id.String(),
		Path:      path,
		Filename:  filename,
		CreatedAt: time.Now(),
	})

	status := domain.StatusCompleted
	progress := 100.0
	fileID := id.String()
	fileURL := "/api/files/" + fileID
	patch := domain.TaskPatch{
		Status:   &status,
		Progress: &progress,
		FileID:   &fileID,
		FileURL:  &fileURL,
		Filename: &filename,
	}
	if advisory != "" {
		patch.Error = &advisory
	}

	if err := w.tasks.Apply(id, patch); err != nil {
		w.logger.Error("failed to mark task completed", "task_id", id, "error", err)
		return
	}

	metrics.TasksCompleted.Inc()
	w.logger.Info("task completed", "task_id", id, "file", path, "filename", filename)
}

func (w *DownloadWorker) fail(id uuid.UUID, msg string) {
	status := domain.StatusFailed
	patch := domain.TaskPatch{Status: &status, Error: &msg}
	if err := w.tasks.Apply(id, patch); err != nil && !errors.Is(err, errpkg.ErrTaskNotFound) {
		w.logger.Error("failed to mark task failed", "task_id", id, "error", err)
		return
	}

	metrics.TasksFailed.Inc()
	w.logger.Error("task failed", "task_id", id, "error", msg)
}

func (w *DownloadWorker) setStatus(id uuid.UUID, status domain.TaskStatus) {
	if err := w.tasks.Apply(id, domain.TaskPatch{Status: &status}); err != nil {
		w.logger.Error("failed to update task status", "task_id", id, "status", status, "error", err)
	}
}

func (w *DownloadWorker) setProgress(id uuid.UUID, pct float64) {
	if err := w.tasks.Apply(id, domain.TaskPatch{Progress: &pct}); err != nil {
		w.logger.Error("failed to update task progress", "task_id", id, "error", err)
	}
}

// ProgressPercent derives a percentage from whichever byte-count signal is
// available: exact total, then estimated total, then downloaded megabytes as
// a rough indicator capped at 100.
func ProgressPercent(p extract.Progress) float64 {
	var pct float64
	switch {
	case p.TotalBytes > 0:
		pct = float64(p.DownloadedBytes) / float64(p.TotalBytes) * 100
	case p.TotalBytesEstimate > 0:
		pct = float64(p.DownloadedBytes) / float64(p.TotalBytesEstimate) * 100
	default:
		pct = float64(p.DownloadedBytes) / (1 << 20)
	}
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}

// SanitizeFilename strips characters unsafe across common filesystems and
// bounds the length. An empty title falls back to "video".
func SanitizeFilename(title string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(title, "_")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "video"
	}

	runes := []rune(cleaned)
	if len(runes) > maxFilenameLen {
		cleaned = string(runes[:maxFilenameLen])
	}
	return cleaned
}

func isNativeAudioHost(url string) bool {
	lower := strings.ToLower(url)
	for _, host := range nativeAudioHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
