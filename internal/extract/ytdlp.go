package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/avoronkov/mediafetch/internal/domain"
)

// progressInterval bounds how often yt-dlp invokes the progress callback.
const progressInterval = 500 * time.Millisecond

// Bootstrap ensures the yt-dlp binary is available, downloading it if
// necessary. Failure is not fatal: the binary may already be on PATH.
func Bootstrap(ctx context.Context) {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		slog.Warn("yt-dlp install check failed, relying on PATH", "error", err)
	}
}

// YTDLPEngine implements Engine on top of the yt-dlp binary.
type YTDLPEngine struct {
	logger *slog.Logger
}

// NewYTDLPEngine creates a yt-dlp backed extraction engine.
func NewYTDLPEngine(logger *slog.Logger) *YTDLPEngine {
	return &YTDLPEngine{logger: logger}
}

// rawInfo mirrors the subset of yt-dlp's JSON dump this service consumes.
type rawInfo struct {
	Title      string      `json:"title"`
	Thumbnail  string      `json:"thumbnail"`
	Duration   float64     `json:"duration"`
	Extractor  string      `json:"extractor"`
	ViewCount  int64       `json:"view_count"`
	UploadDate string      `json:"upload_date"`
	URL        string      `json:"url"`
	Formats    []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Resolution     string   `json:"resolution"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Width          *int     `json:"width"`
	Height         *int     `json:"height"`
	FPS            *float64 `json:"fps"`
	URL            string   `json:"url"`
}

// Version returns the yt-dlp version string.
func (e *YTDLPEngine) Version(ctx context.Context) (string, error) {
	res, err := ytdlp.New().Version(ctx)
	if err != nil {
		return "", fmt.Errorf("query yt-dlp version: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Info extracts format metadata for a URL without downloading anything.
func (e *YTDLPEngine) Info(ctx context.Context, url string) (*domain.VideoInfo, error) {
	res, err := ytdlp.New().
		SkipDownload().
		DumpSingleJSON().
		NoWarnings().
		Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("extract info: %w", err)
	}

	var raw rawInfo
	if err := json.Unmarshal([]byte(res.Stdout), &raw); err != nil {
		return nil, fmt.Errorf("decode info: %w", err)
	}

	return raw.toVideoInfo(), nil
}

// ResolveDirectURL resolves the direct media URL for a given format, used by
// the streaming transcode path.
func (e *YTDLPEngine) ResolveDirectURL(ctx context.Context, url, formatID string) (string, error) {
	res, err := ytdlp.New().
		Format(formatID).
		SkipDownload().
		DumpSingleJSON().
		NoWarnings().
		Run(ctx, url)
	if err != nil {
		return "", fmt.Errorf("resolve direct url: %w", err)
	}

	var raw rawInfo
	if err := json.Unmarshal([]byte(res.Stdout), &raw); err != nil {
		return "", fmt.Errorf("decode info: %w", err)
	}

	if raw.URL == "" {
		return "", fmt.Errorf("no direct url in extractor output")
	}
	return raw.URL, nil
}

// Download downloads a URL through yt-dlp, forwarding progress events.
// Retries are left to yt-dlp's own fragment and request retry policy.
func (e *YTDLPEngine) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	cmd := ytdlp.New().
		Output(req.OutputTemplate).
		ForceOverwrites().
		NoWarnings()

	if req.ExtractAudio {
		cmd = cmd.Format("bestaudio/best").
			ExtractAudio().
			AudioFormat("mp3")
	} else {
		cmd = cmd.Format(req.FormatID)
	}

	if req.OnProgress != nil {
		cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			req.OnProgress(mapProgress(update))
		})
	}

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	result := &DownloadResult{}

	info, err := res.GetExtractedInfo()
	if err == nil && len(info) > 0 {
		if info[0].Filename != nil {
			result.Path = *info[0].Filename
		}
		if info[0].Title != nil {
			result.Title = *info[0].Title
		}
	} else if err != nil {
		e.logger.Warn("no extracted info in download result", "url", req.URL, "error", err)
	}

	return result, nil
}

func mapProgress(update ytdlp.ProgressUpdate) Progress {
	p := Progress{
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
	}

	if eta := update.ETA(); eta > 0 {
		p.ETASeconds = int(eta.Seconds())
	}

	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started); elapsed > 0 {
			p.SpeedBps = float64(update.DownloadedBytes) / elapsed.Seconds()
		}
	}

	return p
}

func (r *rawInfo) toVideoInfo() *domain.VideoInfo {
	formats := make([]domain.MediaFormat, 0, len(r.Formats))
	for _, f := range r.Formats {
		resolution := f.Resolution
		if resolution == "" {
			resolution = "unknown"
		}
		formats = append(formats, domain.MediaFormat{
			FormatID:       f.FormatID,
			Ext:            f.Ext,
			Resolution:     resolution,
			Filesize:       f.Filesize,
			FilesizeApprox: f.FilesizeApprox,
			FormatNote:     f.FormatNote,
			VCodec:         f.VCodec,
			ACodec:         f.ACodec,
			Width:          f.Width,
			Height:         f.Height,
			FPS:            f.FPS,
		})
	}

	SortFormats(formats)

	return &domain.VideoInfo{
		Title:      r.Title,
		Thumbnail:  r.Thumbnail,
		Duration:   r.Duration,
		Formats:    formats,
		Platform:   platformName(r.Extractor),
		ViewCount:  r.ViewCount,
		UploadDate: FormatUploadDate(r.UploadDate),
	}
}

// SortFormats orders formats descending by (height, filesize), falling back
// to the approximate size when the exact one is unknown.
func SortFormats(formats []domain.MediaFormat) {
	sort.SliceStable(formats, func(i, j int) bool {
		hi, hj := formatHeight(formats[i]), formatHeight(formats[j])
		if hi != hj {
			return hi > hj
		}
		return formatSize(formats[i]) > formatSize(formats[j])
	})
}

func formatHeight(f domain.MediaFormat) int {
	if f.Height == nil {
		return 0
	}
	return *f.Height
}

func formatSize(f domain.MediaFormat) int64 {
	if f.Filesize != nil {
		return *f.Filesize
	}
	if f.FilesizeApprox != nil {
		return *f.FilesizeApprox
	}
	return 0
}

// FormatUploadDate converts yt-dlp's YYYYMMDD upload date to YYYY-MM-DD.
// Returns an empty string for missing or malformed input.
func FormatUploadDate(date string) string {
	if len(date) != 8 {
		return ""
	}
	return date[:4] + "-" + date[4:6] + "-" + date[6:8]
}

func platformName(extractor string) string {
	if extractor == "" {
		return "Unknown"
	}
	words := strings.Split(strings.ReplaceAll(extractor, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
