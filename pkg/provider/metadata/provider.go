// Package metadata defines the Resolver and Searcher interfaces for video and
// music metadata backends.
//
// A Resolver turns a free-text query, a source identifier, or a playlist
// identifier into [Descriptor] values that describe playable tracks without
// fetching any audio. A Searcher is the narrower capability used by search
// failover chains: it only answers free-text queries.
//
// Implementations must be safe for concurrent use.
package metadata

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a query or identifier resolves to nothing.
var ErrNotFound = errors.New("metadata: not found")

// Descriptor describes one playable item as reported by a metadata backend.
type Descriptor struct {
	// Title is the display title. Always non-empty for a valid descriptor.
	Title string

	// SourceID is the stable external identifier used as the cache key
	// (for YouTube, the 11-character video id).
	SourceID string

	// Duration is the reported length. Zero when unknown (e.g. live streams).
	Duration time.Duration

	// AuthorName, AuthorURL are the uploader's display name and channel URL.
	AuthorName string
	AuthorURL  string

	// ThumbnailURL is an image URL suitable for embeds. May be empty.
	ThumbnailURL string
}

// Page is one page of a playlist listing.
type Page struct {
	// Title is the playlist title when the backend reports it.
	Title string

	// Items are the playlist entries on this page, in playlist order.
	Items []Descriptor

	// Next is the continuation token for the following page. Empty on the
	// last page.
	Next string
}

// Searcher answers free-text queries.
type Searcher interface {
	// Search returns candidate descriptors for query, best match first.
	// Returns ErrNotFound (possibly wrapped) when there are no results.
	Search(ctx context.Context, query string) ([]Descriptor, error)
}

// Resolver is the abstraction over a full metadata backend.
type Resolver interface {
	// ResolveQuery returns the best match for a free-text query or
	// ErrNotFound.
	ResolveQuery(ctx context.Context, query string) (Descriptor, error)

	// ResolveID returns the descriptor for a known source identifier.
	ResolveID(ctx context.Context, id string) (Descriptor, error)

	// ResolvePlaylist returns one page of the playlist identified by id.
	// token is empty for the first page and Page.Next of the previous page
	// otherwise.
	ResolvePlaylist(ctx context.Context, id, token string) (Page, error)
}
