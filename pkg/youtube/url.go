package youtube

import (
	"fmt"
	"net/url"
	"strings"
)

// WatchURL builds the canonical watch URL for a video id. This is the form
// stored in recipes.video_url and used as the dedup key.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ThumbnailURL builds the max-resolution thumbnail URL for a video id.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", videoID)
}

// ParseVideoID extracts the video id from a watch or shorts URL. Any other
// shape is an error rather than a silent skip, so that callers notice when a
// new URL form shows up.
func ParseVideoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}

	if u.Host != "www.youtube.com" && u.Host != "youtube.com" {
		return "", fmt.Errorf("not a recognized YouTube URL: %s", rawURL)
	}

	if u.Path == "/watch" {
		if v := u.Query().Get("v"); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("watch URL without video id: %s", rawURL)
	}

	if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		if id != "" {
			return id, nil
		}
		return "", fmt.Errorf("shorts URL without video id: %s", rawURL)
	}

	return "", fmt.Errorf("unrecognized YouTube URL shape: %s", rawURL)
}
