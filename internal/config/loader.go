package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenEnv is the environment variable consulted when discord.token is empty.
const TokenEnv = "DISCORD_TOKEN"

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"search":   {"ytdlp", "ytdlp-music", "ytsearch", "ytmusic"},
	"metadata": {"ytdlp"},
	"fetch":    {"ytdlp"},
}

var snowflakePattern = regexp.MustCompile(`^[0-9]{1,20}$`)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields of cfg. The Discord token falls back to the
// [TokenEnv] environment variable.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":9090"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv(TokenEnv)
	}
	if cfg.Playback.DefaultVolume == 0 {
		cfg.Playback.DefaultVolume = 1
	}
	if cfg.Playback.Mode == "" {
		cfg.Playback.Mode = ModeDownload
	}
	if cfg.Playback.MaxPlaylistItems == 0 {
		cfg.Playback.MaxPlaylistItems = 500
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache/audio"
	}
	if cfg.Cache.MaxAttempts == 0 {
		cfg.Cache.MaxAttempts = 5
	}
	if cfg.Cache.MaxAge == 0 {
		cfg.Cache.MaxAge = 720 * time.Hour
	}
	if len(cfg.Providers.Search) == 0 {
		cfg.Providers.Search = []ProviderEntry{{Name: "ytdlp"}}
	}
	if cfg.Providers.Metadata.Name == "" {
		cfg.Providers.Metadata.Name = "ytdlp"
	}
	if cfg.Providers.Fetch.Name == "" {
		cfg.Providers.Fetch.Name = "ytdlp"
	}
	if cfg.Tools.FFmpeg == "" {
		cfg.Tools.FFmpeg = "ffmpeg"
	}
	if cfg.Tools.YtDlp == "" {
		cfg.Tools.YtDlp = "yt-dlp"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Discord
	if id := cfg.Discord.GuildID; id != "" && !snowflakePattern.MatchString(id) {
		errs = append(errs, fmt.Errorf("discord.guild_id %q is not a snowflake", id))
	}
	if id := cfg.Discord.DJRoleID; id != "" && !snowflakePattern.MatchString(id) {
		errs = append(errs, fmt.Errorf("discord.dj_role_id %q is not a snowflake", id))
	}

	// Playback
	if cfg.Playback.DefaultVolume < 0 {
		errs = append(errs, fmt.Errorf("playback.default_volume %.2f must not be negative", cfg.Playback.DefaultVolume))
	}
	if cfg.Playback.Mode != "" && !cfg.Playback.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("playback.mode %q is invalid; valid values: download, stream", cfg.Playback.Mode))
	}
	if cfg.Playback.MaxPlaylistItems < 0 {
		errs = append(errs, fmt.Errorf("playback.max_playlist_items %d must not be negative", cfg.Playback.MaxPlaylistItems))
	}

	// Cache
	if cfg.Cache.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("cache.max_attempts %d must not be negative", cfg.Cache.MaxAttempts))
	}
	if cfg.Cache.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("cache.retry_backoff %s must not be negative", cfg.Cache.RetryBackoff))
	}
	if cfg.Cache.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("cache.max_age %s must not be negative", cfg.Cache.MaxAge))
	}

	// Providers
	seen := make(map[string]int, len(cfg.Providers.Search))
	for i, p := range cfg.Providers.Search {
		prefix := fmt.Sprintf("providers.search[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.search[%d]", prefix, p.Name, prev))
		}
		seen[p.Name] = i
		validateProviderName("search", p.Name)
	}
	validateProviderName("metadata", cfg.Providers.Metadata.Name)
	validateProviderName("fetch", cfg.Providers.Fetch.Name)
	if cfg.Providers.LookupRate < 0 {
		errs = append(errs, fmt.Errorf("providers.lookup_rate %.2f must not be negative", cfg.Providers.LookupRate))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
