package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// MediaTools shells out to ffmpeg, ffprobe and yt-dlp. All invocations take
// a context so abandoned requests kill the child process.
type MediaTools struct{}

func NewMediaTools() *MediaTools { return &MediaTools{} }

// RunFFmpeg executes ffmpeg with the given arguments.
func (m *MediaTools) RunFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// ProbeDuration returns the duration in seconds of a local media file.
func (m *MediaTools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
}

// VideoMetadata is the subset of yt-dlp metadata the pipeline uses.
type VideoMetadata struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// FetchMetadata reads title and duration for a remote video reference.
func (m *MediaTools) FetchMetadata(ctx context.Context, videoURL string) (*VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp", "--dump-json", "--no-download", videoURL)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp metadata: %w", err)
	}
	var meta VideoMetadata
	if err := json.Unmarshal(out.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	return &meta, nil
}

// FetchVideo downloads a remote video into destPath.
func (m *MediaTools) FetchVideo(ctx context.Context, videoURL, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-f", "best[ext=mp4][height<=720]",
		"--output", destPath,
		videoURL)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp download: %w: %s", err, lastLine(stderr.String()))
	}
	if _, err := os.Stat(destPath); err != nil {
		return fmt.Errorf("yt-dlp download produced no file: %w", err)
	}
	return nil
}

// FetchSubtitles downloads subtitle tracks (manual or auto-generated) for a
// remote video into destDir and returns the paths of the .vtt files found.
func (m *MediaTools) FetchSubtitles(ctx context.Context, videoURL, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--write-auto-sub", "--write-sub",
		"--sub-langs", "en,en-US,en-GB",
		"--sub-format", "vtt",
		"--skip-download",
		"--output", filepath.Join(destDir, "%(id)s.%(ext)s"),
		videoURL)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp subtitles: %w: %s", err, lastLine(stderr.String()))
	}
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return nil, err
	}
	var subs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".vtt") {
			subs = append(subs, filepath.Join(destDir, e.Name()))
		}
	}
	return subs, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
