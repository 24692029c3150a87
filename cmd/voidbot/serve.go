package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eric-livezey/void-bot/internal/app"
	"github.com/eric-livezey/void-bot/internal/config"
	discordbot "github.com/eric-livezey/void-bot/internal/discord"
	"github.com/eric-livezey/void-bot/internal/observe"
)

const shutdownTimeout = 15 * time.Second

// errStartup marks failures that were already logged.
var errStartup = errors.New("startup failed")

// loadConfig loads path, falling back to defaults plus environment when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// serve runs the bot until SIGINT or SIGTERM.
func serve(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("voidbot starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"mode", cfg.Playback.Mode,
	)

	if cfg.Discord.Token == "" {
		slog.Error("no Discord token: set discord.token or " + config.TokenEnv)
		return errStartup
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return errStartup
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Tools)
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return errStartup
	}

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:    cfg.Discord.Token,
		GuildID:  cfg.Discord.GuildID,
		DJRoleID: cfg.Discord.DJRoleID,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return errStartup
	}
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	printStartupSummary(cfg, providers)

	application, err := app.New(ctx, cfg, providers,
		app.WithBot(bot),
		app.WithMetrics(metrics),
		app.WithMetricsHandler(tel.MetricsHandler),
		app.WithLevelVar(level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		_ = bot.Close()
		return errStartup
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if _, statErr := os.Stat(configPath); statErr == nil {
		watcher, err := config.NewWatcher(configPath, application.ApplyConfig)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return err
	}
	slog.Info("goodbye")
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, ps *app.Providers) {
	searchers := make([]string, 0, len(cfg.Providers.Search))
	for _, e := range cfg.Providers.Search {
		searchers = append(searchers, e.Name)
	}
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voidbot: startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Search", fmt.Sprint(searchers))
	printRow("Metadata", cfg.Providers.Metadata.Name)
	printRow("Fetch", cfg.Providers.Fetch.Name)
	if ps.Music != nil {
		printRow("Music search", "ytmusic")
	} else {
		printRow("Music search", "(disabled)")
	}
	printRow("Mode", string(cfg.Playback.Mode))
	printRow("Cache dir", cfg.Cache.Dir)
	printRow("Volume", fmt.Sprintf("%.0f%%", cfg.Playback.DefaultVolume*100))
	if cfg.Discord.GuildID != "" {
		printRow("Commands", "guild "+cfg.Discord.GuildID)
	} else {
		printRow("Commands", "global")
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
