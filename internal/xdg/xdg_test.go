// ABOUTME: Tests for XDG base directory lookup and path expansion
// ABOUTME: Covers env overrides, HOME fallbacks and runtime dir selection

package xdg

import (
	"path/filepath"
	"testing"
)

func clearXDG(t *testing.T) {
	t.Helper()
	for _, v := range []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "XDG_CACHE_HOME", "XDG_STATE_HOME", "XDG_RUNTIME_DIR"} {
		t.Setenv(v, "")
	}
}

func TestHomeFallbacks(t *testing.T) {
	clearXDG(t)
	t.Setenv("HOME", "/home/dev")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"config", ConfigHome(), "/home/dev/.config/php-integrator"},
		{"data", DataHome(), "/home/dev/.local/share/php-integrator"},
		{"cache", CacheHome(), "/home/dev/.cache/php-integrator"},
		{"runtime without XDG_RUNTIME_DIR", RuntimeDir(), "/home/dev/.local/state/php-integrator"},
		{"default config file", DefaultConfigFile(), "/home/dev/.config/php-integrator/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearXDG(t)
	t.Setenv("XDG_CONFIG_HOME", "/tmp/custom-config")
	t.Setenv("XDG_DATA_HOME", "/tmp/custom-data")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	if got := ConfigHome(); got != "/tmp/custom-config/php-integrator" {
		t.Errorf("ConfigHome() = %q", got)
	}
	if got := DataHome(); got != "/tmp/custom-data/php-integrator" {
		t.Errorf("DataHome() = %q", got)
	}
	if got := RuntimeDir(); got != "/run/user/1000/php-integrator" {
		t.Errorf("RuntimeDir() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	clearXDG(t)
	t.Setenv("HOME", "/home/dev")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "data home",
			input: "$XDG_DATA_HOME/php-integrator/traffic.db",
			want:  filepath.Join("/home/dev", ".local", "share", "php-integrator", "traffic.db"),
		},
		{
			name:  "config home",
			input: "$XDG_CONFIG_HOME/php-integrator/config.yaml",
			want:  filepath.Join("/home/dev", ".config", "php-integrator", "config.yaml"),
		},
		{
			name:  "cache home",
			input: "$XDG_CACHE_HOME/php-integrator/cache.db",
			want:  filepath.Join("/home/dev", ".cache", "php-integrator", "cache.db"),
		},
		{
			name:  "runtime dir falls back to state home",
			input: "$XDG_RUNTIME_DIR/php-integrator.sock",
			want:  filepath.Join("/home/dev", ".local", "state", "php-integrator.sock"),
		},
		{
			name:  "tilde",
			input: "~/integrator/traffic.db",
			want:  filepath.Join("/home/dev", "integrator", "traffic.db"),
		},
		{
			name:  "absolute path passes through",
			input: "/absolute/path/to/file",
			want:  "/absolute/path/to/file",
		},
		{
			name:  "relative path passes through",
			input: "relative/path/to/file",
			want:  "relative/path/to/file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandPath_UsesEnvValue(t *testing.T) {
	clearXDG(t)
	t.Setenv("XDG_DATA_HOME", "/srv/data")

	if got := ExpandPath("$XDG_DATA_HOME/php-integrator/traffic.db"); got != "/srv/data/php-integrator/traffic.db" {
		t.Errorf("ExpandPath() = %q", got)
	}
}

func TestExpandPath_MissingHOME(t *testing.T) {
	clearXDG(t)
	t.Setenv("HOME", "")

	got := ExpandPath("$XDG_DATA_HOME/php-integrator/traffic.db")
	if filepath.IsAbs(got) && filepath.Dir(filepath.Dir(got)) == "/" {
		t.Errorf("ExpandPath with missing HOME created root path: %q", got)
	}
}
