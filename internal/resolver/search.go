package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
)

// MusicSearcher searches YouTube Music, which ranks official audio uploads
// first for "<title> <artist>" queries.
type MusicSearcher struct{}

func (MusicSearcher) Name() string { return "ytmusic" }

// Search returns the first track with a video id. The library has no context
// support, so the lookup runs in a goroutine and ctx only bounds the wait.
func (MusicSearcher) Search(ctx context.Context, query string) (Hit, error) {
	type result struct {
		hit Hit
		err error
	}
	done := make(chan result, 1)

	go func() {
		r, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			done <- result{err: fmt.Errorf("ytmusic search failed: %w", err)}
			return
		}
		for _, track := range r.Tracks {
			if track.VideoID == "" {
				continue
			}
			done <- result{hit: Hit{
				URL:   "https://music.youtube.com/watch?v=" + track.VideoID,
				Title: track.Title,
			}}
			return
		}
		done <- result{err: errors.New("ytmusic returned no tracks")}
	}()

	select {
	case <-ctx.Done():
		return Hit{}, ctx.Err()
	case r := <-done:
		return r.hit, r.err
	}
}

// WebSearcher scrapes the public YouTube results page, no API key needed
type WebSearcher struct {
	client *ytsearch.Client
}

// NewWebSearcher creates a keyless YouTube searcher
func NewWebSearcher() *WebSearcher {
	return &WebSearcher{client: ytsearch.NewClient(nil)}
}

func (w *WebSearcher) Name() string { return "youtube-web" }

// Search returns the first video result
func (w *WebSearcher) Search(ctx context.Context, query string) (Hit, error) {
	r, err := w.client.Search(ctx, query)
	if err != nil {
		return Hit{}, fmt.Errorf("youtube search failed: %w", err)
	}
	for _, v := range r.Results {
		if v.VideoID == "" {
			continue
		}
		return Hit{
			URL:   "https://www.youtube.com/watch?v=" + v.VideoID,
			Title: v.Title,
		}, nil
	}
	return Hit{}, errors.New("youtube search returned no videos")
}
