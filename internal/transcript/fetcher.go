package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrUnavailable means no transcript exists for the video in any of the
// attempted languages. This is an expected outcome that triggers the audio
// fallback path, not a crash.
var ErrUnavailable = errors.New("transcript: not available")

const defaultBaseURL = "https://video.google.com"

// languages are attempted in this fixed priority order.
var languages = []string{"ko", "ko-KR", "en"}

// Fetcher retrieves video transcripts from the timedtext caption endpoint.
type Fetcher struct {
	client *resty.Client
	logger *zap.Logger
}

func NewFetcher(logger *zap.Logger) *Fetcher {
	client := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2)
	return &Fetcher{client: client, logger: logger}
}

// Fetch returns the full transcript text for a video, trying each configured
// language in order. Transient per-language errors are logged and treated the
// same as a missing track.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	for _, lang := range languages {
		text, err := f.fetchLanguage(ctx, videoID, lang)
		if err != nil {
			f.logger.Debug("transcript fetch attempt failed",
				zap.String("video_id", videoID), zap.String("lang", lang), zap.Error(err))
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", ErrUnavailable
}

func (f *Fetcher) fetchLanguage(ctx context.Context, videoID, lang string) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lang": lang,
			"v":    videoID,
		}).
		Get("/timedtext")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK || len(resp.Body()) == 0 {
		return "", nil
	}
	return parseTimedText(resp.Body())
}

type timedText struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

func parseTimedText(data []byte) (string, error) {
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decoding timedtext: %w", err)
	}

	parts := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		cue := strings.TrimSpace(html.UnescapeString(t.Value))
		if cue != "" {
			parts = append(parts, cue)
		}
	}
	return strings.Join(parts, " "), nil
}
