// Package app wires all voidbot subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the audio cache, the
// track factory, the player registry, the slash commands and the HTTP
// surface, Run serves until the context ends, and Shutdown tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithPlatform,
// WithVoiceStates, WithSinkFactory, etc.). When an option is not provided,
// New derives the real implementation from the Discord bot and the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eric-livezey/void-bot/internal/cache"
	"github.com/eric-livezey/void-bot/internal/config"
	"github.com/eric-livezey/void-bot/internal/discord"
	"github.com/eric-livezey/void-bot/internal/discord/commands"
	"github.com/eric-livezey/void-bot/internal/health"
	"github.com/eric-livezey/void-bot/internal/observe"
	"github.com/eric-livezey/void-bot/internal/playback"
	"github.com/eric-livezey/void-bot/internal/source"
	"github.com/eric-livezey/void-bot/pkg/audio"
	"github.com/eric-livezey/void-bot/pkg/audio/ffmpeg"
	"github.com/eric-livezey/void-bot/pkg/audio/sink"
	"github.com/eric-livezey/void-bot/pkg/provider/fetch"
	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

const (
	// pruneInterval is how often artifacts older than cache.max_age are
	// removed while the bot runs.
	pruneInterval = time.Hour

	httpShutdownTimeout = 5 * time.Second
)

// Providers holds one interface value per provider slot. Populated by the
// CLI via the config registry.
type Providers struct {
	// Search answers free-text /play queries, usually a failover chain.
	Search metadata.Searcher

	// Music backs /play-music. Nil disables the command.
	Music metadata.Searcher

	Resolver metadata.Resolver
	Fetcher  fetch.Fetcher
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Injected or derived from the bot.
	bot            *discord.Bot
	platform       audio.Platform
	voice          commands.VoiceStates
	router         *discord.CommandRouter
	newSink        func() audio.Sink
	metrics        *observe.Metrics
	metricsHandler http.Handler
	levelVar       *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	cache    *cache.Store
	sources  *source.Factory
	players  *playback.Registry
	commands *commands.PlaybackCommands
	server   *http.Server

	mu     sync.Mutex
	volume float64

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBot attaches the Discord bot. Its router, voice platform, permission
// checker and voice state cache are used unless overridden.
func WithBot(b *discord.Bot) Option {
	return func(a *App) { a.bot = b }
}

// WithPlatform injects the voice platform instead of the bot's.
func WithPlatform(p audio.Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithVoiceStates injects the voice membership lookup instead of the bot's.
func WithVoiceStates(v commands.VoiceStates) Option {
	return func(a *App) { a.voice = v }
}

// WithSinkFactory replaces the ffmpeg-backed sink built for each new player.
func WithSinkFactory(fn func() audio.Sink) Option {
	return func(a *App) { a.newSink = fn }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets config reloads change the log level through lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from the CLI (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Search == nil || providers.Resolver == nil || providers.Fetcher == nil {
		return nil, errors.New("app: search, metadata and fetch providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		volume:    cfg.Playback.DefaultVolume,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.bot != nil {
		if a.platform == nil {
			a.platform = a.bot.Platform()
		}
		if a.voice == nil {
			a.voice = a.bot
		}
		a.router = a.bot.Router()
	}
	if a.platform == nil || a.voice == nil {
		return nil, errors.New("app: a voice platform and voice states are required")
	}
	if a.router == nil {
		a.router = discord.NewCommandRouter()
	}
	if a.newSink == nil {
		dec := ffmpeg.New(cfg.Tools.FFmpeg)
		a.newSink = func() audio.Sink { return sink.New(dec) }
	}

	// ── 1. Audio cache ───────────────────────────────────────────────────
	store, err := cache.New(cache.Config{
		Dir:         cfg.Cache.Dir,
		MaxAttempts: cfg.Cache.MaxAttempts,
		Backoff:     cfg.Cache.RetryBackoff,
	}, providers.Fetcher, cache.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("app: init cache: %w", err)
	}
	a.cache = store

	// ── 2. Track factory ─────────────────────────────────────────────────
	a.sources = source.New(source.Config{
		Resolver:         providers.Resolver,
		Searcher:         providers.Search,
		Fetcher:          providers.Fetcher,
		Cache:            store,
		Mode:             source.Mode(cfg.Playback.Mode),
		MaxPlaylistItems: cfg.Playback.MaxPlaylistItems,
		LookupRate:       cfg.Providers.LookupRate,
		Metrics:          a.metrics,
	})

	// ── 3. Players ───────────────────────────────────────────────────────
	a.players = playback.NewRegistry(a.newPlayer, playback.WithRegistryMetrics(a.metrics))
	a.closers = append(a.closers, func() error {
		a.players.Close()
		return nil
	})

	// ── 4. Slash commands ────────────────────────────────────────────────
	perms := discord.NewPermissionChecker(cfg.Discord.DJRoleID)
	if a.bot != nil {
		perms = a.bot.Permissions()
	}
	a.commands = commands.NewPlaybackCommands(a.router, commands.Config{
		Players:  a.players,
		Sources:  a.sources,
		Platform: a.platform,
		Voice:    a.voice,
		Perms:    perms,
		Music:    providers.Music,
	})

	// ── 5. HTTP: health and metrics ──────────────────────────────────────
	a.initHTTP()

	observe.Logger(ctx).Info("app initialised",
		"cache_dir", store.Dir(),
		"mode", cfg.Playback.Mode,
		"commands", len(a.router.ApplicationCommands()),
	)
	return a, nil
}

// newPlayer builds the player for a guild with its own sink and the current
// default volume.
func (a *App) newPlayer(guildID string) *playback.Player {
	return playback.NewPlayer(guildID, a.newSink(), a.platform,
		playback.WithVolume(a.DefaultVolume()),
		playback.WithMetrics(a.metrics),
	)
}

func (a *App) initHTTP() {
	checkers := []health.Checker{
		health.WritableDir("cache", a.cache.Dir()),
		health.Executable("ffmpeg", a.cfg.Tools.FFmpeg),
		health.Executable("yt-dlp", a.cfg.Tools.YtDlp),
	}
	if a.bot != nil {
		checkers = append(checkers, health.Checker{Name: "gateway", Check: a.bot.Ready})
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Players returns the guild player registry.
func (a *App) Players() *playback.Registry { return a.players }

// Sources returns the track factory.
func (a *App) Sources() *source.Factory { return a.sources }

// Cache returns the audio cache.
func (a *App) Cache() *cache.Store { return a.cache }

// Router returns the interaction router the playback commands are
// registered on.
func (a *App) Router() *discord.CommandRouter { return a.router }

// Handler returns the HTTP handler serving /healthz, /readyz and /metrics.
func (a *App) Handler() http.Handler { return a.server.Handler }

// DefaultVolume returns the volume given to newly created players.
func (a *App) DefaultVolume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

// ─── Config reload ───────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable part of a config change: the log
// level and the default volume of new players. Other changes are logged and
// take effect after a restart. It has the signature of a
// [config.Watcher] callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(SlogLevel(d.NewLogLevel))
		slog.Info("config: log level changed", "level", d.NewLogLevel)
	}
	if d.VolumeChanged {
		a.mu.Lock()
		a.volume = d.NewVolume
		a.mu.Unlock()
		slog.Info("config: default volume changed", "volume", d.NewVolume)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config: changes take effect after a restart", "sections", d.RestartRequired)
	}
}

// SlogLevel maps a config log level to its slog level. Unknown levels map
// to info.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP, runs the Discord bot, and prunes the cache until ctx is
// cancelled or one of them fails. When ctx is done, Run returns
// context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.server.Addr != "" {
		g.Go(func() error { return a.serveHTTP(ctx) })
	}
	if a.bot != nil {
		g.Go(func() error { return a.bot.Run(ctx) })
	}
	g.Go(func() error {
		a.pruneLoop(ctx)
		return nil
	})

	slog.Info("app running", "listen_addr", a.server.Addr)
	<-ctx.Done()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (a *App) serveHTTP(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// pruneLoop removes artifacts older than cache.max_age once at startup and
// then every pruneInterval. A zero max age disables pruning.
func (a *App) pruneLoop(ctx context.Context) {
	if a.cfg.Cache.MaxAge <= 0 {
		return
	}
	a.PruneCache(time.Now())

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.PruneCache(now)
		}
	}
}

// PruneCache removes artifacts last modified more than cache.max_age before
// now. It returns the number removed.
func (a *App) PruneCache(now time.Time) int {
	removed, err := a.cache.Prune(a.cfg.Cache.MaxAge, now)
	if err != nil {
		slog.Warn("cache prune error", "err", err)
	}
	if len(removed) > 0 {
		slog.Info("pruned cache", "removed", len(removed), "max_age", a.cfg.Cache.MaxAge)
	}
	return len(removed)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Leave voice and unregister commands first.
		if a.bot != nil {
			if err := a.bot.Close(); err != nil {
				slog.Warn("discord bot close error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
