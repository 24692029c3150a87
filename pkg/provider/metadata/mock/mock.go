// Package mock provides test doubles for the metadata.Resolver and
// metadata.Searcher interfaces.
//
// Example:
//
//	r := &mock.Resolver{
//	    IDs: map[string]metadata.Descriptor{"abc": {SourceID: "abc", Title: "Song"}},
//	}
//	d, _ := r.ResolveID(ctx, "abc")
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

var (
	_ metadata.Resolver = (*Resolver)(nil)
	_ metadata.Searcher = (*Searcher)(nil)
)

// Resolver is a mock implementation of metadata.Resolver.
type Resolver struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Queries maps query text to the descriptor returned by ResolveQuery.
	// Unknown queries return metadata.ErrNotFound.
	Queries map[string]metadata.Descriptor

	// IDs maps source ids to the descriptor returned by ResolveID. Unknown ids
	// return metadata.ErrNotFound.
	IDs map[string]metadata.Descriptor

	// Playlists maps playlist id to its pages. The token for page i > 0 is
	// fmt.Sprint(i).
	Playlists map[string][]metadata.Page

	// Err, if non-nil, is returned by every method.
	Err error

	// --- Call records ---

	// QueryCalls, IDCalls record the arguments of each call in order.
	QueryCalls []string
	IDCalls    []string

	// PlaylistCalls records each ResolvePlaylist (id, token) pair.
	PlaylistCalls [][2]string
}

// ResolveQuery implements metadata.Resolver.
func (r *Resolver) ResolveQuery(_ context.Context, query string) (metadata.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.QueryCalls = append(r.QueryCalls, query)
	if r.Err != nil {
		return metadata.Descriptor{}, r.Err
	}
	d, ok := r.Queries[query]
	if !ok {
		return metadata.Descriptor{}, metadata.ErrNotFound
	}
	return d, nil
}

// ResolveID implements metadata.Resolver.
func (r *Resolver) ResolveID(_ context.Context, id string) (metadata.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IDCalls = append(r.IDCalls, id)
	if r.Err != nil {
		return metadata.Descriptor{}, r.Err
	}
	d, ok := r.IDs[id]
	if !ok {
		return metadata.Descriptor{}, metadata.ErrNotFound
	}
	return d, nil
}

// ResolvePlaylist implements metadata.Resolver. Page.Next is filled in
// automatically from the position of the page.
func (r *Resolver) ResolvePlaylist(_ context.Context, id, token string) (metadata.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PlaylistCalls = append(r.PlaylistCalls, [2]string{id, token})
	if r.Err != nil {
		return metadata.Page{}, r.Err
	}
	pages, ok := r.Playlists[id]
	if !ok || len(pages) == 0 {
		return metadata.Page{}, metadata.ErrNotFound
	}
	idx := 0
	if token != "" {
		if _, err := fmt.Sscan(token, &idx); err != nil || idx < 0 || idx >= len(pages) {
			return metadata.Page{}, fmt.Errorf("mock: invalid token %q", token)
		}
	}
	page := pages[idx]
	page.Next = ""
	if idx+1 < len(pages) {
		page.Next = fmt.Sprint(idx + 1)
	}
	return page, nil
}

// Searcher is a mock implementation of metadata.Searcher.
type Searcher struct {
	mu sync.Mutex

	// Results is returned by Search. An empty slice yields metadata.ErrNotFound.
	Results []metadata.Descriptor

	// Err, if non-nil, is returned by Search.
	Err error

	// Calls records every query passed to Search.
	Calls []string
}

// Search implements metadata.Searcher.
func (s *Searcher) Search(_ context.Context, query string) ([]metadata.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, query)
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Results) == 0 {
		return nil, metadata.ErrNotFound
	}
	return append([]metadata.Descriptor(nil), s.Results...), nil
}

// CallCount returns the number of Search calls.
func (s *Searcher) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
