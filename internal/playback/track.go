// Package playback implements the per-guild playback engine: lazily prepared
// [Track] values, the [Queue] that keeps its head warm, the [Player] state
// machine bound to one audio sink, and the [Registry] of players by guild.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eric-livezey/void-bot/pkg/audio"
)

// defaultTitle is used for tracks created without a title.
const defaultTitle = "Unknown Title"

// PrepareFunc produces a playable resource for a track. It is called with a
// context that is never cancelled: once started, a preparation runs to
// completion even if nobody waits for it.
type PrepareFunc func(ctx context.Context) (*audio.Resource, error)

// Author describes who published a track.
type Author struct {
	Name    string
	URL     string
	IconURL string
}

// Track is one playable unit. Its descriptive fields are set at creation and
// read-only afterwards; its resource is prepared at most once at a time.
//
// All methods are safe for concurrent use.
type Track struct {
	Title     string
	URL       string
	Thumbnail string

	// Duration is zero when unknown.
	Duration time.Duration
	Author   Author

	prepare PrepareFunc

	mu      sync.Mutex
	pending *preparation
}

// preparation is one run of a track's PrepareFunc. done is closed once res
// and err are final.
type preparation struct {
	done chan struct{}
	res  *audio.Resource
	err  error
}

// NewTrack returns an unprepared track. An empty title becomes
// "Unknown Title".
func NewTrack(title string, prepare PrepareFunc) *Track {
	if title == "" {
		title = defaultTitle
	}
	return &Track{Title: title, prepare: prepare}
}

// Prepare starts preparing the track in the background unless a preparation
// is already running or has settled. It never blocks.
func (t *Track) Prepare() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked()
}

func (t *Track) startLocked() *preparation {
	if t.pending != nil {
		return t.pending
	}
	p := &preparation{done: make(chan struct{})}
	t.pending = p
	go func() {
		defer close(p.done)
		res, err := t.prepare(context.Background())
		switch {
		case err != nil:
			p.err = fmt.Errorf("%w: %q: %w", ErrResolution, t.Title, err)
		case res == nil:
			p.err = fmt.Errorf("%w: %q: no resource", ErrResolution, t.Title)
		default:
			p.res = res
		}
	}()
	return p
}

// Resolve returns the prepared resource, starting preparation if needed and
// waiting for it. After a failure every call returns the same error wrapping
// [ErrResolution] until [Track.Reset] is called. ctx bounds the wait only.
func (t *Track) Resolve(ctx context.Context) (*audio.Resource, error) {
	t.mu.Lock()
	p := t.startLocked()
	t.mu.Unlock()

	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reset discards the prepared resource or stored error and closes the
// resource. A preparation still running is orphaned; its resource is closed
// once it settles.
func (t *Track) Reset() {
	t.mu.Lock()
	p := t.pending
	t.pending = nil
	t.mu.Unlock()
	if p != nil {
		p.release()
	}
}

// release closes the resource of p once p has settled.
func (p *preparation) release() {
	select {
	case <-p.done:
		p.closeResource()
	default:
		go func() {
			<-p.done
			p.closeResource()
		}()
	}
}

func (p *preparation) closeResource() {
	if p.res != nil {
		_ = p.res.Close()
	}
}

// IsPrepared reports whether preparation has started.
func (t *Track) IsPrepared() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// IsResolved reports whether preparation finished successfully.
func (t *Track) IsResolved() bool {
	return t.Resource() != nil
}

// Resource returns the prepared resource without waiting, or nil while
// unprepared, preparing, or failed.
func (t *Track) Resource() *audio.Resource {
	t.mu.Lock()
	p := t.pending
	t.mu.Unlock()
	if p == nil {
		return nil
	}
	select {
	case <-p.done:
		if p.err != nil {
			return nil
		}
		return p.res
	default:
		return nil
	}
}
