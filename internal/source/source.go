// Package source turns user input into [playback.Track] values: search
// queries, YouTube video and playlist URLs, and arbitrary HTTP audio such as
// uploaded attachments.
//
// Metadata lookups are rate limited with a token bucket. Each track carries a
// prepare function that materialises audio through the shared cache (download
// mode) or streams it over HTTP (stream mode).
package source

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/eric-livezey/void-bot/internal/observe"
	"github.com/eric-livezey/void-bot/internal/playback"
	"github.com/eric-livezey/void-bot/pkg/audio"
	"github.com/eric-livezey/void-bot/pkg/provider/fetch"
	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

// Mode selects how tracks obtain their audio.
type Mode string

const (
	// ModeDownload fetches audio into the cache before playing it.
	ModeDownload Mode = "download"

	// ModeStream plays cached audio when present and streams otherwise.
	ModeStream Mode = "stream"
)

const (
	defaultMaxPlaylistItems = 500

	// fanOutLimit bounds concurrent lookups when several URLs are resolved
	// at once.
	fanOutLimit = 4
)

// ErrEmptyInput is returned by [Factory.Resolve] for blank input.
var ErrEmptyInput = errors.New("source: empty input")

// Cache is the subset of the audio cache used by track preparation.
type Cache interface {
	Has(id string) bool
	Path(id string) string
	Fetch(ctx context.Context, id string) (string, error)
}

// Config holds the dependencies and settings of a [Factory].
type Config struct {
	Resolver metadata.Resolver
	Searcher metadata.Searcher
	Fetcher  fetch.Fetcher
	Cache    Cache

	// Mode defaults to [ModeDownload].
	Mode Mode

	// MaxPlaylistItems caps how many playlist entries one request expands
	// to. Default: 500.
	MaxPlaylistItems int

	// LookupRate is the number of metadata lookups per second. Zero or
	// negative disables limiting.
	LookupRate float64

	// HTTPClient performs stream and URL downloads. Default:
	// [http.DefaultClient].
	HTTPClient *http.Client

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Result is the outcome of [Factory.Resolve].
type Result struct {
	Tracks []*playback.Track

	// Playlist is the playlist title when the input was a playlist URL.
	Playlist string
}

// Factory creates tracks. It is safe for concurrent use.
type Factory struct {
	resolver metadata.Resolver
	searcher metadata.Searcher
	fetcher  fetch.Fetcher
	cache    Cache
	mode     Mode
	maxItems int
	limiter  *rate.Limiter
	client   *http.Client
	metrics  *observe.Metrics
}

// New creates a Factory.
func New(cfg Config) *Factory {
	limit := rate.Inf
	burst := 1
	if cfg.LookupRate > 0 {
		limit = rate.Limit(cfg.LookupRate)
		burst = max(1, int(cfg.LookupRate))
	}
	f := &Factory{
		resolver: cfg.Resolver,
		searcher: cfg.Searcher,
		fetcher:  cfg.Fetcher,
		cache:    cfg.Cache,
		mode:     cmp.Or(cfg.Mode, ModeDownload),
		maxItems: cmp.Or(cfg.MaxPlaylistItems, defaultMaxPlaylistItems),
		limiter:  rate.NewLimiter(limit, burst),
		client:   cfg.HTTPClient,
		metrics:  cfg.Metrics,
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	if f.metrics == nil {
		f.metrics = observe.DefaultMetrics()
	}
	return f
}

// Mode returns the configured playback mode.
func (f *Factory) Mode() Mode { return f.mode }

// FromDescriptor returns a track for a metadata descriptor.
func (f *Factory) FromDescriptor(d metadata.Descriptor) *playback.Track {
	id := d.SourceID
	t := playback.NewTrack(d.Title, f.prepareID(id))
	t.URL = VideoURL(id, true)
	t.Thumbnail = cmp.Or(d.ThumbnailURL, ThumbnailURL(id))
	t.Duration = d.Duration
	t.Author = playback.Author{Name: d.AuthorName, URL: d.AuthorURL}
	return t
}

func (f *Factory) prepareID(id string) playback.PrepareFunc {
	if f.mode == ModeStream {
		return func(ctx context.Context) (*audio.Resource, error) {
			if f.cache != nil && f.cache.Has(id) {
				return audio.NewFileResource(f.cache.Path(id)), nil
			}
			u, err := f.fetcher.StreamURL(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("source: stream url %s: %w", id, err)
			}
			return f.get(ctx, u)
		}
	}
	return func(ctx context.Context) (*audio.Resource, error) {
		p, err := f.cache.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		return audio.NewFileResource(p), nil
	}
}

// FromURL returns a track that plays the body of an HTTP(S) URL. An empty
// title falls back to the last path segment.
func (f *Factory) FromURL(rawURL, title string) *playback.Track {
	if title == "" {
		if u, err := url.Parse(rawURL); err == nil {
			if base := path.Base(u.Path); base != "/" && base != "." {
				title = base
			}
		}
	}
	t := playback.NewTrack(title, func(ctx context.Context) (*audio.Resource, error) {
		return f.get(ctx, rawURL)
	})
	t.URL = rawURL
	return t
}

// get streams the body of rawURL as a resource.
func (f *Factory) get(ctx context.Context, rawURL string) (*audio.Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: GET: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return nil, fmt.Errorf("source: GET: unexpected status %s", resp.Status)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		drain(resp.Body)
		return nil, errors.New("source: GET: response has no body")
	}
	return audio.NewStreamResource(resp.Body), nil
}

func drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}

// Resolve turns user input into tracks. YouTube video URLs are looked up by
// id, playlist URLs are expanded page by page, other http(s) URLs become URL
// tracks, and anything else is a search query. Input made of several URLs
// separated by whitespace resolves each concurrently, keeping order.
func (f *Factory) Resolve(ctx context.Context, input string) (Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{}, ErrEmptyInput
	}
	if fields := strings.Fields(input); len(fields) > 1 && allURLs(fields) {
		return f.resolveAll(ctx, fields)
	}
	return f.resolveOne(ctx, input)
}

func allURLs(fields []string) bool {
	for _, s := range fields {
		if _, ok := parseHTTP(s); !ok {
			return false
		}
	}
	return true
}

func (f *Factory) resolveAll(ctx context.Context, inputs []string) (Result, error) {
	results := make([]Result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, in := range inputs {
		g.Go(func() error {
			r, err := f.resolveOne(gctx, in)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	var out Result
	for _, r := range results {
		out.Tracks = append(out.Tracks, r.Tracks...)
	}
	return out, nil
}

func (f *Factory) resolveOne(ctx context.Context, input string) (Result, error) {
	if id, ok := ExtractVideoID(input); ok {
		t, err := f.ByID(ctx, id)
		if err != nil {
			return Result{}, err
		}
		return Result{Tracks: []*playback.Track{t}}, nil
	}
	if id, ok := ExtractPlaylistID(input); ok {
		return f.Playlist(ctx, id)
	}
	if _, ok := parseHTTP(input); ok {
		return Result{Tracks: []*playback.Track{f.FromURL(input, "")}}, nil
	}
	t, err := f.Search(ctx, f.searcher, input)
	if err != nil {
		return Result{}, err
	}
	return Result{Tracks: []*playback.Track{t}}, nil
}

// ByID returns the track for a known source id.
func (f *Factory) ByID(ctx context.Context, id string) (*playback.Track, error) {
	var d metadata.Descriptor
	err := f.lookup(ctx, "id", func(ctx context.Context) (err error) {
		d, err = f.resolver.ResolveID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("source: resolve id %s: %w", id, err)
	}
	return f.FromDescriptor(d), nil
}

// Search returns a track for the best result of query on s. A nil s uses the
// configured searcher, or the resolver when none is configured.
func (f *Factory) Search(ctx context.Context, s metadata.Searcher, query string) (*playback.Track, error) {
	var d metadata.Descriptor
	err := f.lookup(ctx, "search", func(ctx context.Context) error {
		if s == nil {
			s = f.searcher
		}
		if s == nil {
			var err error
			d, err = f.resolver.ResolveQuery(ctx, query)
			return err
		}
		results, err := s.Search(ctx, query)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return metadata.ErrNotFound
		}
		d = results[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: search %q: %w", query, err)
	}
	return f.FromDescriptor(d), nil
}

// Playlist expands playlist id into tracks, following continuation tokens up
// to the configured item cap.
func (f *Factory) Playlist(ctx context.Context, id string) (Result, error) {
	var out Result
	token := ""
	for first := true; first || token != ""; first = false {
		var page metadata.Page
		err := f.lookup(ctx, "playlist", func(ctx context.Context) (err error) {
			page, err = f.resolver.ResolvePlaylist(ctx, id, token)
			return err
		})
		if err != nil {
			return Result{}, fmt.Errorf("source: resolve playlist %s: %w", id, err)
		}
		if first {
			out.Playlist = page.Title
		}
		for _, d := range page.Items {
			if len(out.Tracks) == f.maxItems {
				return out, nil
			}
			out.Tracks = append(out.Tracks, f.FromDescriptor(d))
		}
		token = page.Next
	}
	if len(out.Tracks) == 0 {
		return Result{}, fmt.Errorf("source: resolve playlist %s: %w", id, metadata.ErrNotFound)
	}
	return out, nil
}

// lookup runs one rate-limited, traced, and measured metadata call.
func (f *Factory) lookup(ctx context.Context, kind string, fn func(context.Context) error) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, span := observe.StartSpan(ctx, "metadata."+kind)
	start := time.Now()
	err := fn(ctx)
	f.metrics.RecordMetadataLookup(ctx, kind, time.Since(start).Seconds(), err)
	observe.EndSpan(span, err)
	return err
}
