// Package cache implements the on-disk audio cache and the process-wide fetch
// deduplication table.
//
// Every artifact lives at a deterministic path derived from its source
// identifier. Concurrent requests for the same uncached identifier share one
// physical fetch (golang.org/x/sync/singleflight); the fetch is retried a
// bounded number of times and a partial artifact is removed after every
// failed attempt, so a later request never observes a corrupt file.
package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eric-livezey/void-bot/internal/observe"
	"github.com/eric-livezey/void-bot/internal/resilience"
	"github.com/eric-livezey/void-bot/pkg/provider/fetch"
)

var (
	// ErrFetchFailed is returned when every fetch attempt for an identifier
	// failed.
	ErrFetchFailed = errors.New("cache: fetch failed")

	// ErrInvalidID is returned for identifiers that cannot be mapped to a
	// file inside the cache directory.
	ErrInvalidID = errors.New("cache: invalid source id")
)

const (
	defaultMaxAttempts = 5
	defaultExt         = ".webm"
	partSuffix         = ".part"
)

// Config configures a [Store].
type Config struct {
	// Dir is the cache directory. It is created if missing.
	Dir string

	// MaxAttempts is the number of fetch attempts per deduplicated fetch.
	// Default: 5.
	MaxAttempts int

	// Backoff is the delay between attempts. Zero retries immediately.
	Backoff time.Duration

	// Ext is the artifact file extension including the dot. Default: ".webm".
	Ext string
}

// Option is a functional option for [New].
type Option func(*Store)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Entry describes one cached artifact.
type Entry struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is the on-disk cache. It is safe for concurrent use and is meant to
// be shared by every player in the process.
type Store struct {
	dir         string
	ext         string
	maxAttempts int
	backoff     time.Duration
	fetcher     fetch.Fetcher
	metrics     *observe.Metrics

	group singleflight.Group

	mu      sync.Mutex
	waiters map[string]int
}

// New creates a Store rooted at cfg.Dir that downloads misses with f.
func New(cfg Config, f fetch.Fetcher, opts ...Option) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: directory must not be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}
	s := &Store{
		dir:         cfg.Dir,
		ext:         cmp.Or(cfg.Ext, defaultExt),
		maxAttempts: cmp.Or(cfg.MaxAttempts, defaultMaxAttempts),
		backoff:     cfg.Backoff,
		fetcher:     f,
		waiters:     make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the artifact path for id. It does not check existence.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+s.ext)
}

// Has reports whether a complete artifact for id is on disk.
func (s *Store) Has(id string) bool {
	if validID(id) != nil {
		return false
	}
	info, err := os.Stat(s.Path(id))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Fetch returns the artifact path for id, downloading it on a miss. Concurrent
// calls for the same id share one download. The shared download is detached
// from the caller's cancellation: ctx only bounds how long this caller waits.
func (s *Store) Fetch(ctx context.Context, id string) (string, error) {
	if err := validID(id); err != nil {
		return "", err
	}
	if s.Has(id) {
		s.metrics.RecordCacheLookup(ctx, true)
		return s.Path(id), nil
	}
	s.metrics.RecordCacheLookup(ctx, false)

	if s.join(id) {
		s.metrics.FetchDedupJoins.Add(ctx, 1)
		slog.Debug("cache: joining in-flight fetch", "source_id", id)
	}
	defer s.leave(id)

	ch := s.group.DoChan(id, func() (any, error) {
		return s.download(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("cache: fetch %q: %w", id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// download performs the bounded-retry fetch. It runs once per in-flight id.
// The fetcher writes to a temporary path that is renamed into place only
// after a successful attempt, so Has never sees a partial artifact.
func (s *Store) download(ctx context.Context, id string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "cache.fetch")
	start := time.Now()
	dest := s.Path(id)
	tmp := s.partPath(id)
	log := observe.Logger(ctx).With("source_id", id)

	// Another waiter may have completed the artifact just before we joined.
	if s.Has(id) {
		observe.EndSpan(span, nil)
		return dest, nil
	}
	// A previous process may have died mid-download.
	s.remove(tmp)

	err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts: s.maxAttempts,
		Backoff:     s.backoff,
		Cleanup:     func() { s.remove(tmp) },
		OnFailure: func(attempt int, err error) {
			log.Warn("cache: fetch attempt failed", "attempt", attempt, "err", err)
		},
	}, func(ctx context.Context, attempt int) error {
		_, err := s.fetcher.Fetch(ctx, id, tmp)
		if err == nil {
			err = s.commit(tmp, dest)
		}
		s.metrics.RecordFetchAttempt(ctx, err)
		return err
	})
	s.metrics.FetchDuration.Record(ctx, time.Since(start).Seconds())
	observe.EndSpan(span, err)

	if err != nil {
		log.Error("cache: fetch failed", "err", err)
		return "", fmt.Errorf("%w: %s: %w", ErrFetchFailed, id, err)
	}
	log.Debug("cache: fetched", "duration", time.Since(start))
	return dest, nil
}

// commit moves a finished download from tmp to dest. An empty or missing tmp
// is [fetch.ErrNoOutput].
func (s *Store) commit(tmp, dest string) error {
	info, err := os.Stat(tmp)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return fetch.ErrNoOutput
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("cache: commit artifact: %w", err)
	}
	return nil
}

// partPath is where an in-progress download of id is written.
func (s *Store) partPath(id string) string {
	return s.Path(id) + partSuffix
}

func (s *Store) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("cache: remove partial artifact", "path", path, "err", err)
	}
}

// join registers a waiter for id and reports whether a fetch was already in
// flight.
func (s *Store) join(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters[id]++
	return s.waiters[id] > 1
}

func (s *Store) leave(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiters[id]--; s.waiters[id] <= 0 {
		delete(s.waiters, id)
	}
}

func (s *Store) inFlight(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters[id]
}

// List returns the cached artifacts sorted by id.
func (s *Store) List() ([]Entry, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("cache: list: %w", err)
	}
	var out []Entry
	for _, de := range des {
		name := de.Name()
		if !de.Type().IsRegular() || !strings.HasSuffix(name, s.ext) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			ID:      strings.TrimSuffix(name, s.ext),
			Path:    filepath.Join(s.dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Prune deletes artifacts last modified before now-olderThan and returns
// them. Artifacts with a fetch in flight are kept.
func (s *Store) Prune(olderThan time.Duration, now time.Time) ([]Entry, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-olderThan)
	var removed []Entry
	var errs []error
	for _, e := range entries {
		if !e.ModTime.Before(cutoff) || s.inFlight(e.ID) > 0 {
			continue
		}
		if err := os.Remove(e.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, e)
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("cache: prune: %w", errors.Join(errs...))
	}
	return removed, nil
}

// validID rejects identifiers that would escape the cache directory.
func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.Contains(id, "\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
