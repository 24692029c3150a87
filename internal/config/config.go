// Package config provides the configuration schema, loader, provider registry,
// and hot-reload watcher for voidbot.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// PlaybackMode selects how tracks obtain their audio.
type PlaybackMode string

const (
	// ModeDownload materialises every track in the cache before playing it.
	ModeDownload PlaybackMode = "download"

	// ModeStream plays cached audio when present and streams otherwise.
	ModeStream PlaybackMode = "stream"
)

// IsValid reports whether m is a recognised playback mode.
func (m PlaybackMode) IsValid() bool {
	return m == ModeDownload || m == ModeStream
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Cache     CacheConfig     `yaml:"cache"`
	Providers ProvidersConfig `yaml:"providers"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// ServerConfig holds the HTTP listener (metrics, health) and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the HTTP server. Default: ":9090".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DiscordConfig holds the bot credentials and guild-level settings.
type DiscordConfig struct {
	// Token is the bot token. When empty, DISCORD_TOKEN is used.
	Token string `yaml:"token"`

	// GuildID registers slash commands to a single guild, which makes them
	// available immediately. Empty registers them globally.
	GuildID string `yaml:"guild_id"`

	// DJRoleID, when set, is required to use playback control commands.
	DJRoleID string `yaml:"dj_role_id"`
}

// PlaybackConfig holds player defaults.
type PlaybackConfig struct {
	// DefaultVolume is the gain of new players. Zero means 1.0.
	DefaultVolume float64 `yaml:"default_volume"`

	// Mode is download (default) or stream.
	Mode PlaybackMode `yaml:"mode"`

	// MaxPlaylistItems caps how many entries one playlist request enqueues.
	// Default: 500.
	MaxPlaylistItems int `yaml:"max_playlist_items"`
}

// CacheConfig configures the on-disk audio cache.
type CacheConfig struct {
	// Dir is the cache directory. Default: "cache/audio".
	Dir string `yaml:"dir"`

	// MaxAttempts is the number of download attempts per source. Default: 5.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryBackoff is the delay between download attempts. Default: 0s.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// MaxAge is the default age threshold of `voidbot cache prune`.
	// Default: 720h.
	MaxAge time.Duration `yaml:"max_age"`
}

// ProvidersConfig declares which backend serves each metadata and fetch
// concern. Each entry names a factory registered in the [Registry].
type ProvidersConfig struct {
	// Search lists search backends in failover order.
	Search []ProviderEntry `yaml:"search"`

	// Metadata resolves ids, queries, and playlists.
	Metadata ProviderEntry `yaml:"metadata"`

	// Fetch downloads audio.
	Fetch ProviderEntry `yaml:"fetch"`

	// LookupRate is the number of metadata lookups per second across all
	// guilds. Zero disables limiting.
	LookupRate float64 `yaml:"lookup_rate"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. Name selects the factory in the [Registry].
type ProviderEntry struct {
	Name string `yaml:"name"`

	// Options holds provider-specific values such as proxy or format.
	Options map[string]any `yaml:"options"`
}

// OptionString returns Options[key] when it is a string, or "".
func (e ProviderEntry) OptionString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptionInt returns Options[key] when it is an integer, or def.
func (e ProviderEntry) OptionInt(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// OptionBool returns Options[key] when it is a bool, or false.
func (e ProviderEntry) OptionBool(key string) bool {
	b, _ := e.Options[key].(bool)
	return b
}

// ToolsConfig locates the external executables.
type ToolsConfig struct {
	// FFmpeg is the ffmpeg binary. Default: "ffmpeg".
	FFmpeg string `yaml:"ffmpeg"`

	// YtDlp is the yt-dlp binary. Default: "yt-dlp".
	YtDlp string `yaml:"ytdlp"`
}
