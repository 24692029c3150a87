// Package fetch defines the Fetcher interface for audio download backends.
//
// A Fetcher materialises the audio of a source identifier either as a file on
// disk (download mode) or as a direct media URL that can be streamed over HTTP
// (stream mode). Retry policy belongs to the caller; a Fetcher performs exactly
// one attempt per call.
//
// Implementations must be safe for concurrent use.
package fetch

import (
	"context"
	"errors"
)

// ErrNoOutput is returned when the fetch tool reported success but did not
// produce the expected artifact.
var ErrNoOutput = errors.New("fetch: tool produced no output")

// Fetcher is the abstraction over an audio download backend.
type Fetcher interface {
	// Fetch downloads the audio for id to dest and returns dest on success.
	// On failure a partial file may remain at dest; the caller is
	// responsible for removing it.
	Fetch(ctx context.Context, id, dest string) (string, error)

	// StreamURL returns a direct media URL for id suitable for an HTTP GET.
	StreamURL(ctx context.Context, id string) (string, error)
}
