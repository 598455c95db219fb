package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/user/recipe-crawler/internal/domain"
	"github.com/user/recipe-crawler/pkg/youtube"
)

// ErrSourceUnavailable means the channel itself could not be listed. Unlike
// per-video failures this aborts the whole run.
var ErrSourceUnavailable = errors.New("source: channel listing unavailable")

// Client wraps the yt-dlp binary for channel listing and audio downloads.
type Client struct {
	binPath string
	tempDir string
	logger  *zap.Logger
}

func NewClient(tempDir string, logger *zap.Logger) *Client {
	return &Client{
		binPath: "yt-dlp",
		tempDir: tempDir,
		logger:  logger,
	}
}

type listingEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listing struct {
	Entries []listingEntry `json:"entries"`
}

// List fetches up to limit videos from a channel in the order the channel
// currently presents them. The listing is flat: no formats are resolved and
// nothing is downloaded.
func (c *Client) List(ctx context.Context, channelURL string, limit int) ([]domain.Video, error) {
	if limit < 1 {
		return nil, fmt.Errorf("source: limit must be at least 1, got %d", limit)
	}

	args := []string{
		"-J",
		"--flat-playlist",
		"--playlist-end", strconv.Itoa(limit),
		"--no-warnings",
		channelURL,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrSourceUnavailable, err, strings.TrimSpace(stderr.String()))
	}

	videos, err := parseListing(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, err)
	}
	return videos, nil
}

func parseListing(data []byte) ([]domain.Video, error) {
	var l listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}

	videos := make([]domain.Video, 0, len(l.Entries))
	for _, e := range l.Entries {
		if e.ID == "" {
			continue
		}
		videos = append(videos, domain.Video{ID: e.ID, Title: e.Title})
	}
	return videos, nil
}

// Audio is a temporary local audio file produced for one video. The caller
// owns its lifecycle and must call Release once extraction is done.
type Audio struct {
	path string
}

func (a *Audio) Path() string { return a.path }

// Release deletes the temporary file. Safe to call if the file is already gone.
func (a *Audio) Release() error {
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DownloadAudio extracts the best audio track of a video to an mp3 in the
// temp dir. A failure here is non-fatal for the run; the video is counted as
// failed and skipped.
func (c *Client) DownloadAudio(ctx context.Context, videoID string) (*Audio, error) {
	outTemplate := filepath.Join(c.tempDir, "recipe_"+videoID+".%(ext)s")
	audioPath := filepath.Join(c.tempDir, "recipe_"+videoID+".mp3")

	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "128K",
		"-o", outTemplate,
		"--no-warnings",
		"--no-progress",
		youtube.WatchURL(videoID),
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// yt-dlp may leave a partial file behind on failure.
		_ = os.Remove(audioPath)
		return nil, fmt.Errorf("source: downloading audio for %s: %s: %s", videoID, err, strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("source: audio file missing after download for %s: %w", videoID, err)
	}

	c.logger.Debug("audio downloaded", zap.String("video_id", videoID), zap.String("path", audioPath))
	return &Audio{path: audioPath}, nil
}
