package common

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

var (
	ErrNoAudioFormat   = errors.New("no audio format available")
	ErrInvalidVideoURL = errors.New("no video id in youtube url")

	videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// IsYouTubeURL checks if a URL appears to be from YouTube
func IsYouTubeURL(urlStr string) bool {
	return strings.Contains(urlStr, "youtube.com") || strings.Contains(urlStr, "youtu.be")
}

// ExtractYouTubeVideoID extracts the video ID from a YouTube URL
func ExtractYouTubeVideoID(youtubeURL string) string {
	parsedURL, err := url.Parse(youtubeURL)
	if err != nil {
		return ""
	}

	var id string
	switch {
	case strings.Contains(parsedURL.Host, "youtu.be"):
		id = strings.TrimPrefix(parsedURL.Path, "/")
	case strings.Contains(parsedURL.Host, "youtube.com"):
		if v := parsedURL.Query().Get("v"); v != "" {
			id = v
		} else {
			for _, prefix := range []string{"/embed/", "/live/", "/shorts/"} {
				if strings.HasPrefix(parsedURL.Path, prefix) {
					id = strings.TrimPrefix(parsedURL.Path, prefix)
					break
				}
			}
		}
	}

	id = strings.Split(id, "/")[0]
	if !videoIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// YouTubeResolver resolves YouTube station URLs, typically 24/7 live
// streams, to a direct media URL. Other URLs pass through unchanged.
type YouTubeResolver struct {
	client *youtube.Client
	logger logging.Logger
}

// NewYouTubeResolver creates a new YouTubeResolver
func NewYouTubeResolver(logger logging.Logger) *YouTubeResolver {
	return &YouTubeResolver{
		client: &youtube.Client{},
		logger: logger.With(logging.String("component", "youtube")),
	}
}

func (r *YouTubeResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	if !IsYouTubeURL(rawURL) {
		return rawURL, nil
	}

	// Channel and playlist links carry no video.
	videoID := ExtractYouTubeVideoID(rawURL)
	if videoID == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidVideoURL, rawURL)
	}
	logger := r.logger.With(logging.String("video_id", videoID))

	video, err := r.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch video info: %w", err)
	}

	if video.HLSManifestURL != "" {
		logger.Debug("Resolved live stream", logging.String("title", video.Title))
		return video.HLSManifestURL, nil
	}

	formats := video.Formats.Type("audio/")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoAudioFormat, videoID)
	}

	best := formats[0]
	for _, f := range formats[1:] {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}

	streamURL, err := r.client.GetStreamURLContext(ctx, video, &best)
	if err != nil {
		return "", fmt.Errorf("failed to get stream url: %w", err)
	}

	logger.Debug("Resolved video stream", logging.String("title", video.Title))
	return streamURL, nil
}
