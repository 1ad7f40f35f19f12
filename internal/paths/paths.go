// Package paths resolves where the storefront CLI keeps its configuration
// and its local browsing-context data.
//
// Both directories follow the same precedence chain: an explicit flag wins,
// then the environment, then a per-user platform default. The data directory
// additionally honors the data_dir key from config.yaml, which sits between
// the flag and the environment.
package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories under the platform roots.
const AppName = "storefront"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "STOREFRONT_CONFIG_DIR"
	EnvDataDir   = "STOREFRONT_DATA_DIR"
)

// ErrNoHome is returned when neither a platform directory nor a home
// directory can be determined.
var ErrNoHome = errors.New("cannot determine user directory")

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/storefront (fallback ~/.config/storefront)
// macOS:   ~/Library/Application Support/storefront
// Windows: %APPDATA%/storefront
func DefaultConfigDir() (string, error) {
	if platformDir.goos == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	return userDir()
}

// DefaultDataDir returns the platform-specific data directory. On macOS and
// Windows it shares the configuration root.
//
// Linux:   $XDG_DATA_HOME/storefront (fallback ~/.local/share/storefront)
func DefaultDataDir() (string, error) {
	if platformDir.goos == "linux" {
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	}
	return userDir()
}

func xdgDir(env, fallback string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil || home == "" {
		return "", ErrNoHome
	}
	return filepath.Join(home, fallback, AppName), nil
}

func userDir() (string, error) {
	dir, err := platformDir.userConfigDir()
	if err != nil || dir == "" {
		return "", ErrNoHome
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir returns the configuration directory:
// flag > STOREFRONT_CONFIG_DIR > DefaultConfigDir().
// Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory:
// flag > config.yaml data_dir > STOREFRONT_DATA_DIR > DefaultDataDir().
// A relative data_dir is taken relative to configDir so the same config
// file works from any working directory.
func ResolveDataDir(flag, configured, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configured != "" {
		if !filepath.IsAbs(configured) && configDir != "" {
			configured = filepath.Join(configDir, configured)
		}
		return filepath.Abs(configured)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}
