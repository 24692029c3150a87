// Package mock provides a test double for the fetch.Fetcher interface.
//
// FetchFunc controls the outcome of each download attempt so tests can
// simulate flaky tools, partial files, and slow fetches:
//
//	f := &mock.Fetcher{
//	    FetchFunc: func(ctx context.Context, id, dest string, attempt int) error {
//	        return os.WriteFile(dest, []byte("audio"), 0o644)
//	    },
//	}
package mock

import (
	"context"
	"os"
	"sync"

	"github.com/eric-livezey/void-bot/pkg/provider/fetch"
)

var _ fetch.Fetcher = (*Fetcher)(nil)

// FetchCall records a single invocation of Fetch.
type FetchCall struct {
	ID   string
	Dest string
}

// Fetcher is a mock implementation of fetch.Fetcher.
type Fetcher struct {
	mu sync.Mutex

	// FetchFunc is invoked by Fetch with the 1-based attempt number for id.
	// When nil, Fetch writes Content to dest.
	FetchFunc func(ctx context.Context, id, dest string, attempt int) error

	// Content is written to dest when FetchFunc is nil.
	Content []byte

	// StreamURLResult and StreamURLErr are returned by StreamURL.
	StreamURLResult string
	StreamURLErr    error

	// FetchCalls records every Fetch call in order.
	FetchCalls []FetchCall

	// StreamURLCalls records every id passed to StreamURL.
	StreamURLCalls []string

	attempts map[string]int
}

// Fetch implements fetch.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, id, dest string) (string, error) {
	f.mu.Lock()
	f.FetchCalls = append(f.FetchCalls, FetchCall{ID: id, Dest: dest})
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[id]++
	attempt := f.attempts[id]
	fn := f.FetchFunc
	content := f.Content
	f.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, id, dest, attempt); err != nil {
			return "", err
		}
		return dest, nil
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// StreamURL implements fetch.Fetcher.
func (f *Fetcher) StreamURL(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StreamURLCalls = append(f.StreamURLCalls, id)
	return f.StreamURLResult, f.StreamURLErr
}

// CallCount returns the number of Fetch calls.
func (f *Fetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.FetchCalls)
}
