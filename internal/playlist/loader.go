// Package playlist fills the play queue from an external playlist.
package playlist

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"loopmuse/internal/boterr"
	"loopmuse/internal/resolver"
	"loopmuse/internal/state"
	"loopmuse/pkg/logger"
	"loopmuse/pkg/metrics"
)

// Track is one playlist entry as reported by the metadata service
type Track struct {
	Title   string
	Artists []string
}

// Query is the search text used to find the track: title plus first artist
func (t Track) Query() string {
	if len(t.Artists) == 0 || t.Artists[0] == "" {
		return strings.TrimSpace(t.Title)
	}
	return strings.TrimSpace(t.Title + " " + t.Artists[0])
}

// Source lists every entry of a playlist. Entries without a track payload
// (removed or local tracks, podcast episodes) are returned as nil.
type Source interface {
	Tracks(ctx context.Context, playlistID string) ([]*Track, error)
}

// StreamResolver resolves a search query to a stream
type StreamResolver interface {
	Resolve(ctx context.Context, input string) (resolver.Stream, error)
}

// Result summarizes a load
type Result struct {
	Total   int // entries with a track payload
	Count   int // entries that made it into the queue
	Skipped int // entries that could not be resolved
	Empty   int // entries without a track payload
}

// Options configures a Loader
type Options struct {
	PlaylistID  string
	Concurrency int
	RateLimit   float64
	RateBurst   int
}

// Loader replaces the queue with the resolved contents of a playlist
type Loader struct {
	source     Source
	resolver   StreamResolver
	store      *state.Store
	playlistID string
	workers    int
	limiter    *rate.Limiter
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// NewLoader creates a Loader. source may be nil when the metadata client could
// not be configured; Load then reports NotConfigured.
func NewLoader(source Source, res StreamResolver, store *state.Store, opts Options, log *logger.Logger, m *metrics.Metrics) *Loader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Loader{
		source:     source,
		resolver:   res,
		store:      store,
		playlistID: opts.PlaylistID,
		workers:    opts.Concurrency,
		limiter:    rate.NewLimiter(limit, opts.RateBurst),
		log:        log.WithComponent("loader"),
		metrics:    m,
	}
}

// Load fetches the playlist, resolves every track and swaps the result into
// the queue. On a fetch failure the queue is left untouched.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	if l.source == nil {
		return Result{}, boterr.NewNotConfiguredError("playlist metadata client is not initialized")
	}
	if l.playlistID == "" {
		return Result{}, boterr.NewNotConfiguredError("no playlist id configured")
	}

	start := time.Now()
	entries, err := l.source.Tracks(ctx, l.playlistID)
	if err != nil {
		return Result{}, boterr.NewUpstreamError("failed to fetch playlist", err).
			WithContext("playlist_id", l.playlistID)
	}

	var result Result
	queries := make([]string, 0, len(entries))
	for _, t := range entries {
		if t == nil {
			result.Empty++
			continue
		}
		queries = append(queries, t.Query())
	}
	result.Total = len(queries)

	locators := l.resolveAll(ctx, queries)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	queue := make([]string, 0, len(locators))
	for _, loc := range locators {
		if loc != "" {
			queue = append(queue, loc)
		}
	}
	result.Count = len(queue)
	result.Skipped = result.Total - result.Count

	l.store.ReplaceQueue(queue)

	elapsed := time.Since(start)
	l.metrics.RecordLoad(result.Count, result.Skipped, elapsed)
	l.metrics.RecordQueueSize(result.Count)
	l.log.LogQueueEvent("playlist_loaded", logger.Fields{
		"playlist_id": l.playlistID,
		"loaded":      result.Count,
		"skipped":     result.Skipped,
		"empty":       result.Empty,
		"duration_ms": elapsed.Milliseconds(),
	})

	return result, nil
}

// resolveAll resolves queries on a bounded worker pool. The returned slice is
// in query order with "" for failures.
func (l *Loader) resolveAll(ctx context.Context, queries []string) []string {
	locators := make([]string, len(queries))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < l.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer boterr.Recover(l.log, "loader worker")
			for i := range jobs {
				locators[i] = l.resolveOne(ctx, queries[i])
			}
		}()
	}

feed:
	for i := range queries {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return locators
}

func (l *Loader) resolveOne(ctx context.Context, query string) string {
	if err := l.limiter.Wait(ctx); err != nil {
		return ""
	}

	stream, err := l.resolver.Resolve(ctx, query)
	if err != nil {
		l.log.Debug("Dropping unresolvable track", logger.Fields{
			"query": query,
			"error": err.Error(),
		})
		return ""
	}

	if stream.PageURL != "" {
		return stream.PageURL
	}
	return stream.Locator
}
