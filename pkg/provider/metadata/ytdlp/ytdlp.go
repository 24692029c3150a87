// Package ytdlp implements [metadata.Resolver] and [metadata.Searcher] on top
// of the yt-dlp command-line tool via github.com/lrstanley/go-ytdlp.
//
// All lookups run yt-dlp in simulate mode with a tab-separated print template,
// so no media is downloaded. Playlist pages are fetched with --playlist-items
// ranges; the continuation token is the 1-based index of the next entry.
package ytdlp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

var (
	_ metadata.Resolver = (*Provider)(nil)
	_ metadata.Searcher = (*Provider)(nil)
)

const (
	defaultSearchLimit = 5
	defaultPageSize    = 100

	// printTemplate yields one line per entry. Missing fields print as "NA".
	printTemplate = "%(id)s\t%(title)s\t%(duration)s\t%(uploader)s\t%(channel_url)s\t%(thumbnail)s\t%(playlist_title)s"
	fieldCount    = 7
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithExecutable sets the yt-dlp binary. Defaults to "yt-dlp" on PATH.
func WithExecutable(path string) Option {
	return func(p *Provider) { p.bin = path }
}

// WithProxy routes yt-dlp traffic through proxy.
func WithProxy(proxy string) Option {
	return func(p *Provider) { p.proxy = proxy }
}

// WithSearchLimit sets how many results Search asks for.
func WithSearchLimit(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.searchLimit = n
		}
	}
}

// WithPageSize sets the number of playlist entries per page.
func WithPageSize(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithMusicSearch makes Search query YouTube Music (ytmsearch) instead of
// YouTube.
func WithMusicSearch() Option {
	return func(p *Provider) { p.searchPrefix = "ytmsearch" }
}

// Provider resolves metadata by invoking yt-dlp.
type Provider struct {
	bin          string
	proxy        string
	searchLimit  int
	pageSize     int
	searchPrefix string
}

// New creates a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		searchLimit:  defaultSearchLimit,
		pageSize:     defaultPageSize,
		searchPrefix: "ytsearch",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// command returns a yt-dlp command preloaded with the flags shared by every
// lookup.
func (p *Provider) command() *goytdlp.Command {
	cmd := goytdlp.New().
		Print(printTemplate).
		NoWarnings().
		IgnoreConfig()
	if p.bin != "" {
		cmd.SetExecutable(p.bin)
	}
	if p.proxy != "" {
		cmd.Proxy(p.proxy)
	}
	return cmd
}

func (p *Provider) run(ctx context.Context, cmd *goytdlp.Command, args ...string) ([]entry, error) {
	res, err := cmd.Run(ctx, args...)
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr))
		}
		return nil, err
	}
	return parseEntries(res.Stdout), nil
}

// Search implements [metadata.Searcher].
func (p *Provider) Search(ctx context.Context, query string) ([]metadata.Descriptor, error) {
	return p.search(ctx, query, p.searchLimit)
}

func (p *Provider) search(ctx context.Context, query string, limit int) ([]metadata.Descriptor, error) {
	cmd := p.command().
		FlatPlaylist().
		PlaylistItems(fmt.Sprintf("1-%d", limit))
	entries, err := p.run(ctx, cmd, fmt.Sprintf("%s%d:%s", p.searchPrefix, limit, query))
	if err != nil {
		return nil, fmt.Errorf("ytdlp: search %q: %w", query, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("ytdlp: search %q: %w", query, metadata.ErrNotFound)
	}
	out := make([]metadata.Descriptor, len(entries))
	for i, e := range entries {
		out[i] = e.Descriptor
	}
	return out, nil
}

// ResolveQuery implements [metadata.Resolver].
func (p *Provider) ResolveQuery(ctx context.Context, query string) (metadata.Descriptor, error) {
	ds, err := p.search(ctx, query, 1)
	if err != nil {
		return metadata.Descriptor{}, err
	}
	return ds[0], nil
}

// ResolveID implements [metadata.Resolver].
func (p *Provider) ResolveID(ctx context.Context, id string) (metadata.Descriptor, error) {
	cmd := p.command().NoPlaylist()
	entries, err := p.run(ctx, cmd, "--skip-download", "https://www.youtube.com/watch?v="+id)
	if err != nil {
		return metadata.Descriptor{}, fmt.Errorf("ytdlp: resolve %q: %w", id, err)
	}
	if len(entries) == 0 {
		return metadata.Descriptor{}, fmt.Errorf("ytdlp: resolve %q: %w", id, metadata.ErrNotFound)
	}
	return entries[0].Descriptor, nil
}

// ResolvePlaylist implements [metadata.Resolver].
func (p *Provider) ResolvePlaylist(ctx context.Context, id, token string) (metadata.Page, error) {
	start := 1
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 1 {
			return metadata.Page{}, fmt.Errorf("ytdlp: playlist %q: invalid continuation token %q", id, token)
		}
		start = n
	}

	cmd := p.command().
		FlatPlaylist().
		PlaylistItems(fmt.Sprintf("%d-%d", start, start+p.pageSize-1))
	entries, err := p.run(ctx, cmd, "https://www.youtube.com/playlist?list="+id)
	if err != nil {
		return metadata.Page{}, fmt.Errorf("ytdlp: playlist %q: %w", id, err)
	}
	if len(entries) == 0 && start == 1 {
		return metadata.Page{}, fmt.Errorf("ytdlp: playlist %q: %w", id, metadata.ErrNotFound)
	}

	page := metadata.Page{Items: make([]metadata.Descriptor, 0, len(entries))}
	for _, e := range entries {
		if page.Title == "" {
			page.Title = e.playlistTitle
		}
		page.Items = append(page.Items, e.Descriptor)
	}
	if len(entries) == p.pageSize {
		page.Next = strconv.Itoa(start + p.pageSize)
	}
	return page, nil
}

// entry is one parsed line of print output.
type entry struct {
	metadata.Descriptor
	playlistTitle string
}

// parseEntries parses printTemplate output. Lines with too few fields or no id
// are skipped.
func parseEntries(stdout string) []entry {
	var out []entry
	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		ps := strings.Split(line, "\t")
		if len(ps) < fieldCount {
			continue
		}
		for i := range ps {
			ps[i] = field(ps[i])
		}
		if ps[0] == "" {
			continue
		}
		title := ps[1]
		if title == "" {
			title = ps[0]
		}
		out = append(out, entry{
			Descriptor: metadata.Descriptor{
				SourceID:     ps[0],
				Title:        title,
				Duration:     parseSeconds(ps[2]),
				AuthorName:   ps[3],
				AuthorURL:    ps[4],
				ThumbnailURL: ps[5],
			},
			playlistTitle: ps[6],
		})
	}
	return out
}

// field normalises a printed value; yt-dlp prints "NA" for missing fields.
func field(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}

// parseSeconds parses yt-dlp's duration field, which may be fractional.
func parseSeconds(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s + "s")
	if err != nil || d < 0 {
		return 0
	}
	return d.Round(time.Second)
}
