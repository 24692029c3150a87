// Package ytdlp implements [fetch.Fetcher] with the yt-dlp command-line tool
// via github.com/lrstanley/go-ytdlp.
package ytdlp

import (
	"context"
	"fmt"
	"os"
	"strings"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/eric-livezey/void-bot/pkg/provider/fetch"
)

var _ fetch.Fetcher = (*Fetcher)(nil)

const defaultFormat = "bestaudio[ext=webm]/bestaudio"

// Option is a functional option for Fetcher.
type Option func(*Fetcher)

// WithExecutable sets the yt-dlp binary. Defaults to "yt-dlp" on PATH.
func WithExecutable(path string) Option {
	return func(f *Fetcher) { f.bin = path }
}

// WithFormat sets the yt-dlp format selector.
func WithFormat(format string) Option {
	return func(f *Fetcher) {
		if format != "" {
			f.format = format
		}
	}
}

// WithProxy routes yt-dlp traffic through proxy.
func WithProxy(proxy string) Option {
	return func(f *Fetcher) { f.proxy = proxy }
}

// Fetcher downloads audio with yt-dlp.
type Fetcher struct {
	bin    string
	format string
	proxy  string
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{format: defaultFormat}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Fetcher) command() *goytdlp.Command {
	cmd := goytdlp.New().
		Format(f.format).
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if f.bin != "" {
		cmd.SetExecutable(f.bin)
	}
	if f.proxy != "" {
		cmd.Proxy(f.proxy)
	}
	return cmd
}

// VideoURL returns the watch URL yt-dlp is pointed at for id.
func VideoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Fetch implements [fetch.Fetcher].
func (f *Fetcher) Fetch(ctx context.Context, id, dest string) (string, error) {
	res, err := f.command().
		Output(dest).
		NoPart().
		Run(ctx, VideoURL(id))
	if err != nil {
		return "", fmt.Errorf("ytdlp: fetch %q: %w", id, withStderr(res, err))
	}
	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("ytdlp: fetch %q: %w", id, fetch.ErrNoOutput)
	}
	return dest, nil
}

// StreamURL implements [fetch.Fetcher].
func (f *Fetcher) StreamURL(ctx context.Context, id string) (string, error) {
	res, err := f.command().Run(ctx, "--get-url", VideoURL(id))
	if err != nil {
		return "", fmt.Errorf("ytdlp: stream url %q: %w", id, withStderr(res, err))
	}
	for line := range strings.SplitSeq(res.Stdout, "\n") {
		if u := strings.TrimSpace(line); u != "" {
			return u, nil
		}
	}
	return "", fmt.Errorf("ytdlp: stream url %q: %w", id, fetch.ErrNoOutput)
}

func withStderr(res *goytdlp.Result, err error) error {
	if res == nil {
		return err
	}
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}
