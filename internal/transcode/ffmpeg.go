package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Audio encoding settings.
const (
	AudioBitrate    = "192k"
	AudioSampleRate = "44100"
	FFmpegCommand   = "ffmpeg"
)

// AudioTranscoder produces an mp3 from a local file or a direct media URL.
type AudioTranscoder interface {
	ToMP3(ctx context.Context, inputPath, outputPath string) error
	FromStream(ctx context.Context, directURL, outputPath string) error
}

// FFmpeg implements AudioTranscoder by invoking the ffmpeg binary.
type FFmpeg struct {
	bin    string
	logger *slog.Logger
}

// NewFFmpeg creates an ffmpeg-backed transcoder.
func NewFFmpeg(logger *slog.Logger) *FFmpeg {
	return &FFmpeg{
		bin:    FFmpegCommand,
		logger: logger,
	}
}

// codecStrategies are tried in order until one produces an output file.
// libmp3lame is the preferred encoder; the built-in mp3 encoder is the
// fallback for ffmpeg builds shipped without lame.
var codecStrategies = [][]string{
	{"-acodec", "libmp3lame", "-ab", AudioBitrate, "-ar", AudioSampleRate},
	{"-acodec", "mp3", "-ab", AudioBitrate},
}

// ToMP3 converts a local media file to mp3, trying each codec strategy in
// sequence before giving up.
func (f *FFmpeg) ToMP3(ctx context.Context, inputPath, outputPath string) error {
	var lastErr error
	for _, codec := range codecStrategies {
		args := BuildArgs(inputPath, outputPath, codec)
		if err := f.run(ctx, args); err != nil {
			lastErr = err
			os.Remove(outputPath)
			f.logger.Warn("transcode strategy failed",
				"input", inputPath,
				"codec", codec[1],
				"error", err,
			)
			continue
		}
		return nil
	}
	return fmt.Errorf("all transcode strategies failed: %w", lastErr)
}

// FromStream converts directly from a remote media URL to mp3 in one pass,
// without downloading the full file first.
func (f *FFmpeg) FromStream(ctx context.Context, directURL, outputPath string) error {
	args := BuildArgs(directURL, outputPath, codecStrategies[0])
	if err := f.run(ctx, args); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("stream transcode failed: %w", err)
	}
	return nil
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w", firstLine(msg), err)
		}
		return err
	}
	return nil
}

// BuildArgs assembles the ffmpeg argument list for an audio-only conversion.
func BuildArgs(input, output string, codec []string) []string {
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", input,
		"-vn",
	}
	args = append(args, codec...)
	args = append(args, "-threads", "4", output)
	return args
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
