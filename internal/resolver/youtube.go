package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	yt "github.com/kkdai/youtube/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTube extracts audio stream URLs for YouTube links without spawning yt-dlp
type YouTube struct {
	client *yt.Client
}

// NewYouTube creates a YouTube extractor
func NewYouTube() *YouTube {
	return &YouTube{client: &yt.Client{}}
}

func (y *YouTube) Name() string { return "youtube" }

// Supports accepts YouTube and YouTube Music links
func (y *YouTube) Supports(target string) bool { return IsYouTubeURL(target) }

// Extract picks the best audio format of the video and returns its stream URL
func (y *YouTube) Extract(ctx context.Context, target string) (Stream, error) {
	video, err := y.client.GetVideoContext(ctx, target)
	if err != nil {
		return Stream{}, fmt.Errorf("failed to get video: %w", err)
	}

	format := bestAudioFormat(video.Formats.WithAudioChannels())
	if format == nil {
		return Stream{}, errors.New("no format with audio")
	}

	locator, err := y.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return Stream{}, fmt.Errorf("failed to get stream url: %w", err)
	}

	return Stream{
		Locator:  locator,
		Title:    video.Title,
		PageURL:  "https://www.youtube.com/watch?v=" + video.ID,
		Duration: video.Duration,
	}, nil
}

// bestAudioFormat prefers audio-only formats, then the highest bitrate
func bestAudioFormat(formats yt.FormatList) *yt.Format {
	var best *yt.Format
	bestAudioOnly := false
	for i := range formats {
		f := &formats[i]
		audioOnly := strings.HasPrefix(f.MimeType, "audio/")
		switch {
		case best == nil,
			audioOnly && !bestAudioOnly,
			audioOnly == bestAudioOnly && f.Bitrate > best.Bitrate:
			best = f
			bestAudioOnly = audioOnly
		}
	}
	return best
}

// DataAPISearcher searches with the YouTube Data API v3
type DataAPISearcher struct {
	service    *youtube.Service
	maxResults int64
}

// NewDataAPISearcher creates a searcher authenticated with an API key
func NewDataAPISearcher(ctx context.Context, apiKey string, maxResults int64) (*DataAPISearcher, error) {
	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &DataAPISearcher{service: service, maxResults: maxResults}, nil
}

func (d *DataAPISearcher) Name() string { return "youtube-api" }

// Search returns the first video result for query
func (d *DataAPISearcher) Search(ctx context.Context, query string) (Hit, error) {
	response, err := d.service.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		MaxResults(d.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return Hit{}, fmt.Errorf("search request failed: %w", err)
	}

	for _, item := range response.Items {
		if item.Id == nil || item.Id.Kind != "youtube#video" {
			continue
		}
		title := ""
		if item.Snippet != nil {
			title = item.Snippet.Title
		}
		return Hit{
			URL:   "https://www.youtube.com/watch?v=" + item.Id.VideoId,
			Title: title,
		}, nil
	}
	return Hit{}, errors.New("no video results")
}
