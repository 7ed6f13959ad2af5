// Package resolver turns a search query or media URL into a directly
// streamable locator.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"loopmuse/internal/boterr"
	"loopmuse/pkg/logger"
)

// SearchPrefix is handed to yt-dlp when no separate search provider is set.
// It returns only the first result.
const SearchPrefix = "ytsearch1:"

// Stream is a resolved, playable track
type Stream struct {
	Locator  string        // direct media URL opened by the encoder
	Title    string        // display title
	PageURL  string        // stable page URL, safe to keep in the queue
	Duration time.Duration // zero when unknown
}

// Hit is a single search result
type Hit struct {
	URL   string
	Title string
}

// Extractor turns a URL (or a yt-dlp search expression) into a Stream
type Extractor interface {
	Name() string
	Supports(target string) bool
	Extract(ctx context.Context, target string) (Stream, error)
}

// Searcher maps free text to the best matching page URL
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) (Hit, error)
}

// Resolver resolves input by searching (for free text) and then trying each
// extractor in order until one yields a locator.
type Resolver struct {
	extractors []Extractor
	searcher   Searcher
	log        *logger.Logger
}

// New creates a Resolver. A nil searcher means free text is passed to the
// extractors as a yt-dlp search expression.
func New(log *logger.Logger, searcher Searcher, extractors ...Extractor) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		extractors: extractors,
		searcher:   searcher,
		log:        log.WithComponent("resolver"),
	}
}

// Resolve returns the stream for a query or URL
func (r *Resolver) Resolve(ctx context.Context, input string) (Stream, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Stream{}, boterr.NewResolutionError("empty input", nil)
	}

	target := input
	if !IsURL(input) {
		if r.searcher != nil {
			hit, err := r.searcher.Search(ctx, input)
			if err != nil {
				return Stream{}, boterr.NewResolutionError(fmt.Sprintf("search %q via %s", input, r.searcher.Name()), err)
			}
			r.log.Debug("Search matched", logger.Fields{
				"query":    input,
				"match":    hit.Title,
				"url":      hit.URL,
				"searcher": r.searcher.Name(),
			})
			target = hit.URL
		} else {
			target = SearchPrefix + input
		}
	}

	var errs []error
	for _, ex := range r.extractors {
		if !ex.Supports(target) {
			continue
		}

		stream, err := ex.Extract(ctx, target)
		if err == nil && stream.Locator == "" {
			err = errors.New("empty locator")
		}
		if err != nil {
			r.log.Debug("Extractor failed", logger.Fields{
				"extractor": ex.Name(),
				"target":    target,
				"error":     err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", ex.Name(), err))
			continue
		}

		if stream.PageURL == "" && IsURL(target) {
			stream.PageURL = target
		}
		if stream.Title == "" {
			stream.Title = input
		}
		return stream, nil
	}

	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no extractor accepts this input"))
	}
	return Stream{}, boterr.NewResolutionError(fmt.Sprintf("no stream for %q", input), errors.Join(errs...))
}

// IsURL reports whether input is an absolute http(s) URL
func IsURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsYouTubeURL reports whether input points at a YouTube or YouTube Music video
func IsYouTubeURL(input string) bool {
	if !IsURL(input) {
		return false
	}
	u, _ := url.Parse(input)
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}
