package extract

import (
	"context"

	"github.com/avoronkov/mediafetch/internal/domain"
)

// Progress is one progress event reported by the extraction engine during a
// download. TotalBytes is the exact content length when the engine knows it;
// TotalBytesEstimate is the engine's guess when it does not. Either or both
// may be zero.
type Progress struct {
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
	ETASeconds         int
	SpeedBps           float64
}

// ProgressFunc receives progress events. It may be invoked many times per
// second and must stay cheap; implementations must also tolerate events
// arriving for tasks that already reached a terminal state.
type ProgressFunc func(Progress)

// DownloadRequest describes one download handed to the engine.
type DownloadRequest struct {
	URL      string
	FormatID string

	// OutputTemplate is an engine output template, e.g. "/dir/<id>.%(ext)s".
	OutputTemplate string

	// ExtractAudio asks the engine to run its own audio extraction
	// post-processing and produce an mp3 directly.
	ExtractAudio bool

	OnProgress ProgressFunc
}

// DownloadResult reports the outcome of a finished engine download.
type DownloadResult struct {
	// Path is the file the engine reports having written. Post-processing
	// may change the extension, so callers verify existence on disk.
	Path  string
	Title string
}

// Engine resolves media URLs to format metadata and downloads media.
// The production implementation wraps yt-dlp; tests substitute fakes.
type Engine interface {
	Version(ctx context.Context) (string, error)
	Info(ctx context.Context, url string) (*domain.VideoInfo, error)
	ResolveDirectURL(ctx context.Context, url, formatID string) (string, error)
	Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error)
}
