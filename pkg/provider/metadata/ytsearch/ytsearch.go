// Package ytsearch implements [metadata.Searcher] using the YouTube web
// search scraper github.com/ppalone/ytsearch. It needs no external binary and
// serves as a fallback when yt-dlp search is unavailable.
//
// Results carry only an id and a title; the caller is expected to resolve full
// metadata by id when it needs duration or author details.
package ytsearch

import (
	"context"
	"fmt"

	"github.com/ppalone/ytsearch"

	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

var _ metadata.Searcher = (*Searcher)(nil)

// hit is the subset of a search result the searcher consumes.
type hit struct {
	VideoID string
	Title   string
}

// Searcher queries YouTube search.
type Searcher struct {
	limit int

	// search performs the raw query. Overridden in tests.
	search func(ctx context.Context, query string) ([]hit, error)
}

// New returns a Searcher that yields at most limit results (0 means no limit).
func New(limit int) *Searcher {
	c := ytsearch.NewClient(nil)
	return &Searcher{
		limit: limit,
		search: func(ctx context.Context, query string) ([]hit, error) {
			res, err := c.Search(ctx, query)
			if err != nil {
				return nil, err
			}
			hits := make([]hit, 0, len(res.Results))
			for _, r := range res.Results {
				hits = append(hits, hit{VideoID: r.VideoID, Title: r.Title})
			}
			return hits, nil
		},
	}
}

// Search implements [metadata.Searcher].
func (s *Searcher) Search(ctx context.Context, query string) ([]metadata.Descriptor, error) {
	hits, err := s.search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ytsearch: search %q: %w", query, err)
	}

	out := make([]metadata.Descriptor, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if h.VideoID == "" || seen[h.VideoID] {
			continue
		}
		seen[h.VideoID] = true
		title := h.Title
		if title == "" {
			title = h.VideoID
		}
		out = append(out, metadata.Descriptor{SourceID: h.VideoID, Title: title})
		if s.limit > 0 && len(out) == s.limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ytsearch: search %q: %w", query, metadata.ErrNotFound)
	}
	return out, nil
}
