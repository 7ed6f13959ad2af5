package resolver

import (
	"context"
	"fmt"

	"loopmuse/config"
	"loopmuse/pkg/logger"
)

// FromConfig assembles the resolver described by the configuration:
// the search provider for free text plus yt-dlp, optionally backed by the
// native YouTube extractor.
func FromConfig(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Resolver, error) {
	var searcher Searcher
	switch cfg.Resolver.SearchMode {
	case config.SearchModeYTSearch, "":
		// yt-dlp handles the search itself
	case config.SearchModeYTMusic:
		searcher = MusicSearcher{}
	case config.SearchModeYouTube:
		searcher = NewWebSearcher()
	case config.SearchModeAPI:
		s, err := NewDataAPISearcher(ctx, cfg.YouTube.APIKey, cfg.YouTube.MaxSearchResults)
		if err != nil {
			return nil, err
		}
		searcher = s
	default:
		return nil, fmt.Errorf("unknown search mode %q", cfg.Resolver.SearchMode)
	}

	extractors := []Extractor{NewYTDLP(cfg.Resolver.Format, cfg.Resolver.Proxy, cfg.Resolver.Executable)}
	if cfg.Resolver.EnableFallback {
		extractors = append(extractors, NewYouTube())
	}

	return New(log, searcher, extractors...), nil
}
