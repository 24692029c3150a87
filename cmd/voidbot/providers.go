package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/eric-livezey/void-bot/internal/app"
	"github.com/eric-livezey/void-bot/internal/config"
	"github.com/eric-livezey/void-bot/internal/resilience"
	"github.com/eric-livezey/void-bot/pkg/provider/fetch"
	fetchytdlp "github.com/eric-livezey/void-bot/pkg/provider/fetch/ytdlp"
	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
	metaytdlp "github.com/eric-livezey/void-bot/pkg/provider/metadata/ytdlp"
	"github.com/eric-livezey/void-bot/pkg/provider/metadata/ytmusic"
	"github.com/eric-livezey/void-bot/pkg/provider/metadata/ytsearch"
)

const defaultSearchLimit = 5

// musicSearcher names the searcher behind /play-music.
const musicSearcher = "ytmusic"

// registerBuiltinProviders wires all built-in provider factories into reg.
// yt-dlp backed providers run the binary configured under tools.ytdlp.
func registerBuiltinProviders(reg *config.Registry, tools config.ToolsConfig) {
	metadataProvider := func(entry config.ProviderEntry, extra ...metaytdlp.Option) *metaytdlp.Provider {
		opts := []metaytdlp.Option{
			metaytdlp.WithExecutable(tools.YtDlp),
			metaytdlp.WithProxy(entry.OptionString("proxy")),
			metaytdlp.WithSearchLimit(entry.OptionInt("limit", defaultSearchLimit)),
			metaytdlp.WithPageSize(entry.OptionInt("page_size", 0)),
		}
		return metaytdlp.New(append(opts, extra...)...)
	}

	// ── Search ────────────────────────────────────────────────────────────────

	reg.RegisterSearcher("ytdlp", func(entry config.ProviderEntry) (metadata.Searcher, error) {
		return metadataProvider(entry), nil
	})
	reg.RegisterSearcher("ytdlp-music", func(entry config.ProviderEntry) (metadata.Searcher, error) {
		return metadataProvider(entry, metaytdlp.WithMusicSearch()), nil
	})
	reg.RegisterSearcher("ytsearch", func(entry config.ProviderEntry) (metadata.Searcher, error) {
		return ytsearch.New(entry.OptionInt("limit", defaultSearchLimit)), nil
	})
	reg.RegisterSearcher("ytmusic", func(entry config.ProviderEntry) (metadata.Searcher, error) {
		return ytmusic.New(entry.OptionInt("limit", defaultSearchLimit)), nil
	})

	// ── Metadata ──────────────────────────────────────────────────────────────

	reg.RegisterResolver("ytdlp", func(entry config.ProviderEntry) (metadata.Resolver, error) {
		return metadataProvider(entry), nil
	})

	// ── Fetch ─────────────────────────────────────────────────────────────────

	reg.RegisterFetcher("ytdlp", func(entry config.ProviderEntry) (fetch.Fetcher, error) {
		return fetchytdlp.New(
			fetchytdlp.WithExecutable(tools.YtDlp),
			fetchytdlp.WithFormat(entry.OptionString("format")),
			fetchytdlp.WithProxy(entry.OptionString("proxy")),
		), nil
	})
}

// buildProviders instantiates all providers named in cfg using the registry.
// The search entries become one failover chain in configured order.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	var chain *resilience.SearchFallback
	for _, entry := range cfg.Providers.Search {
		s, err := reg.CreateSearcher(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown search provider, skipping", "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create search provider %q: %w", entry.Name, err)
		}
		if chain == nil {
			chain = resilience.NewSearchFallback(s, entry.Name, resilience.FallbackConfig{})
		} else {
			chain.AddFallback(entry.Name, s)
		}
		slog.Info("provider created", "kind", "search", "name", entry.Name)
	}
	if chain == nil {
		return nil, errors.New("no usable search provider configured")
	}
	ps.Search = chain

	resolver, err := reg.CreateResolver(cfg.Providers.Metadata)
	if err != nil {
		return nil, fmt.Errorf("create metadata provider %q: %w", cfg.Providers.Metadata.Name, err)
	}
	ps.Resolver = resolver
	slog.Info("provider created", "kind", "metadata", "name", cfg.Providers.Metadata.Name)

	fetcher, err := reg.CreateFetcher(cfg.Providers.Fetch)
	if err != nil {
		return nil, fmt.Errorf("create fetch provider %q: %w", cfg.Providers.Fetch.Name, err)
	}
	ps.Fetcher = fetcher
	slog.Info("provider created", "kind", "fetch", "name", cfg.Providers.Fetch.Name)

	// /play-music reuses a configured ytmusic entry when there is one.
	music := config.ProviderEntry{Name: musicSearcher}
	for _, entry := range cfg.Providers.Search {
		if entry.Name == musicSearcher {
			music = entry
		}
	}
	if s, err := reg.CreateSearcher(music); err != nil {
		slog.Warn("music search disabled", "err", err)
	} else {
		ps.Music = s
	}

	return ps, nil
}
