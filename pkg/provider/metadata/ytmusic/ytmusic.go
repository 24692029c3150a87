// Package ytmusic implements [metadata.Searcher] over YouTube Music track
// search using github.com/raitonoberu/ytmusic.
package ytmusic

import (
	"context"
	"fmt"

	"github.com/raitonoberu/ytmusic"

	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

var _ metadata.Searcher = (*Searcher)(nil)

// track is the subset of a track result the searcher consumes.
type track struct {
	VideoID string
	Title   string
	Artist  string
}

// Searcher queries YouTube Music for tracks.
type Searcher struct {
	limit int

	// search performs the raw query. Overridden in tests.
	search func(query string) ([]track, error)
}

// New returns a Searcher that yields at most limit results (0 means no limit).
func New(limit int) *Searcher {
	return &Searcher{
		limit: limit,
		search: func(query string) ([]track, error) {
			res, err := ytmusic.TrackSearch(query).Next()
			if err != nil {
				return nil, err
			}
			out := make([]track, 0, len(res.Tracks))
			for _, v := range res.Tracks {
				t := track{VideoID: v.VideoID, Title: v.Title}
				if len(v.Artists) > 0 {
					t.Artist = v.Artists[0].Name
				}
				out = append(out, t)
			}
			return out, nil
		},
	}
}

// Search implements [metadata.Searcher]. The underlying client has no
// context support, so cancellation abandons the in-flight request.
func (s *Searcher) Search(ctx context.Context, query string) ([]metadata.Descriptor, error) {
	type result struct {
		tracks []track
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		tracks, err := s.search(query)
		ch <- result{tracks, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ytmusic: search %q: %w", query, ctx.Err())
	case r = <-ch:
	}
	if r.err != nil {
		return nil, fmt.Errorf("ytmusic: search %q: %w", query, r.err)
	}

	out := make([]metadata.Descriptor, 0, len(r.tracks))
	for _, t := range r.tracks {
		if t.VideoID == "" {
			continue
		}
		title := t.Title
		if title == "" {
			title = t.VideoID
		}
		out = append(out, metadata.Descriptor{
			SourceID:   t.VideoID,
			Title:      title,
			AuthorName: t.Artist,
		})
		if s.limit > 0 && len(out) == s.limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ytmusic: search %q: %w", query, metadata.ErrNotFound)
	}
	return out, nil
}
