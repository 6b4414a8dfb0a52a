// ABOUTME: XDG base directory lookup for the integrator's config, data and runtime files
// ABOUTME: Expands $XDG_* prefixes and ~ in configured paths with a HOME fallback chain

package xdg

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName is the directory created under each XDG base directory.
const AppName = "php-integrator"

type baseDir struct {
	env      string
	fallback []string
}

var (
	configBase = baseDir{env: "XDG_CONFIG_HOME", fallback: []string{".config"}}
	dataBase   = baseDir{env: "XDG_DATA_HOME", fallback: []string{".local", "share"}}
	cacheBase  = baseDir{env: "XDG_CACHE_HOME", fallback: []string{".cache"}}
	stateBase  = baseDir{env: "XDG_STATE_HOME", fallback: []string{".local", "state"}}
)

func (b baseDir) root() string {
	if dir := os.Getenv(b.env); dir != "" {
		return dir
	}
	return filepath.Join(append([]string{getHome()}, b.fallback...)...)
}

// ConfigHome returns ~/.config/php-integrator or respects XDG_CONFIG_HOME.
func ConfigHome() string {
	return filepath.Join(configBase.root(), AppName)
}

// DataHome returns ~/.local/share/php-integrator or respects XDG_DATA_HOME.
func DataHome() string {
	return filepath.Join(dataBase.root(), AppName)
}

// CacheHome returns ~/.cache/php-integrator or respects XDG_CACHE_HOME.
func CacheHome() string {
	return filepath.Join(cacheBase.root(), AppName)
}

// RuntimeDir is where unix sockets go. XDG_RUNTIME_DIR has no HOME
// fallback, so the state directory stands in when it is unset.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(stateBase.root(), AppName)
}

// DefaultConfigFile is the config file used when no -config flag is given.
func DefaultConfigFile() string {
	return filepath.Join(ConfigHome(), "config.yaml")
}

// ExpandPath expands ~ and a leading $XDG_* variable in a configured path.
// Variables expand to the base directory, not the app directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(getHome(), path[2:])
	}

	// strings.HasPrefix: filepath.HasPrefix matches on path elements
	for _, b := range []baseDir{dataBase, configBase, cacheBase, stateBase} {
		prefix := "$" + b.env
		if strings.HasPrefix(path, prefix) {
			return b.root() + path[len(prefix):]
		}
	}
	if strings.HasPrefix(path, "$XDG_RUNTIME_DIR") {
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return dir + path[len("$XDG_RUNTIME_DIR"):]
		}
		return stateBase.root() + path[len("$XDG_RUNTIME_DIR"):]
	}

	return path
}

// getHome returns HOME, falling back to the working directory.
func getHome() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}
