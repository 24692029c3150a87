package resilience

import (
	"context"
	"errors"

	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

// SearchFallback implements [metadata.Searcher] with automatic failover
// across multiple search backends. A backend answering "no results" does not
// count against its circuit breaker, but the next backend is still asked.
type SearchFallback struct {
	group *FallbackGroup[metadata.Searcher]
}

var _ metadata.Searcher = (*SearchFallback)(nil)

// NewSearchFallback creates a [SearchFallback] with primary as the preferred
// backend.
func NewSearchFallback(primary metadata.Searcher, primaryName string, cfg FallbackConfig) *SearchFallback {
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = func(err error) bool {
			return countsAsFailure(err) && !errors.Is(err, metadata.ErrNotFound)
		}
	}
	return &SearchFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional search backend.
func (f *SearchFallback) AddFallback(name string, s metadata.Searcher) {
	f.group.AddFallback(name, s)
}

// Backends returns the backend names in failover order.
func (f *SearchFallback) Backends() []string {
	return f.group.Names()
}

// Search implements [metadata.Searcher]. When every backend fails the error
// wraps [ErrAllFailed] and the last backend's error, so a chain that found
// nothing anywhere still matches [metadata.ErrNotFound].
func (f *SearchFallback) Search(ctx context.Context, query string) ([]metadata.Descriptor, error) {
	return ExecuteWithResult(ctx, f.group, func(s metadata.Searcher) ([]metadata.Descriptor, error) {
		return s.Search(ctx, query)
	})
}
