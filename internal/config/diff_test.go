package config_test

import (
	"slices"
	"testing"

	"github.com/eric-livezey/void-bot/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	d := config.Diff(cfg, cfg)
	if d.Changed() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantLevel   bool
		wantVolume  bool
		wantRestart []string
	}{
		{
			name:      "log level",
			mutate:    func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			wantLevel: true,
		},
		{
			name:       "default volume",
			mutate:     func(c *config.Config) { c.Playback.DefaultVolume = 0.3 },
			wantVolume: true,
		},
		{
			name:        "listen address",
			mutate:      func(c *config.Config) { c.Server.ListenAddr = ":1234" },
			wantRestart: []string{"server"},
		},
		{
			name:        "dj role",
			mutate:      func(c *config.Config) { c.Discord.DJRoleID = "42" },
			wantRestart: []string{"discord"},
		},
		{
			name:        "mode",
			mutate:      func(c *config.Config) { c.Playback.Mode = config.ModeStream },
			wantRestart: []string{"playback"},
		},
		{
			name: "provider options and cache dir",
			mutate: func(c *config.Config) {
				c.Providers.Search[0].Options = map[string]any{"limit": 3}
				c.Cache.Dir = "/tmp/other"
			},
			wantRestart: []string{"cache", "providers"},
		},
		{
			name:        "tools",
			mutate:      func(c *config.Config) { c.Tools.FFmpeg = "/opt/ffmpeg" },
			wantRestart: []string{"tools"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := config.Default()
			updated := config.Default()
			tc.mutate(updated)

			d := config.Diff(old, updated)
			if d.LogLevelChanged != tc.wantLevel {
				t.Errorf("LogLevelChanged = %v, want %v", d.LogLevelChanged, tc.wantLevel)
			}
			if tc.wantLevel && d.NewLogLevel != updated.Server.LogLevel {
				t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, updated.Server.LogLevel)
			}
			if d.VolumeChanged != tc.wantVolume {
				t.Errorf("VolumeChanged = %v, want %v", d.VolumeChanged, tc.wantVolume)
			}
			if tc.wantVolume && d.NewVolume != updated.Playback.DefaultVolume {
				t.Errorf("NewVolume = %v, want %v", d.NewVolume, updated.Playback.DefaultVolume)
			}
			if !slices.Equal(d.RestartRequired, tc.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tc.wantRestart)
			}
			if !d.Changed() {
				t.Error("Changed() = false")
			}
		})
	}
}
