// Package config loads storefront configuration. The CLI reads config.yaml
// from the configuration directory through viper; the auth server reads its
// settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/storefront/internal/counter"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// FileName is the configuration file inside the configuration directory.
const FileName = "config.yaml"

// Keys recognized in config.yaml.
const (
	KeyBackend      = "backend"
	KeyDataDir      = "data_dir"
	KeyServerURL    = "server_url"
	KeyDebounce     = "debounce"
	KeyPollInterval = "poll_interval"
)

// Defaults applied when config.yaml omits a key.
const (
	DefaultBackend   = types.BackendSQLite
	DefaultServerURL = "http://localhost:8080"
)

// ErrDurationInvalid reports a negative debounce or poll interval.
var ErrDurationInvalid = errors.New("duration must not be negative")

// CLI holds the settings the storefront CLI reads from config.yaml.
type CLI struct {
	Backend      string
	DataDir      string
	ServerURL    string
	Debounce     time.Duration
	PollInterval time.Duration
}

// StoreConfig returns the backend configuration for dataDir.
func (c CLI) StoreConfig(dataDir string) types.Config {
	return types.Config{
		Backend:      c.Backend,
		DataDir:      dataDir,
		PollInterval: c.PollInterval,
	}
}

// Load reads config.yaml from configDir. A missing directory or file is not
// an error; defaults fill every key the file leaves out. STOREFRONT_BACKEND
// and STOREFRONT_SERVER_URL override the file.
func Load(configDir string) (CLI, error) {
	v := viper.New()
	v.SetDefault(KeyBackend, DefaultBackend)
	v.SetDefault(KeyServerURL, DefaultServerURL)
	v.SetDefault(KeyDebounce, counter.DefaultDebounce)
	v.SetDefault(KeyPollInterval, types.DefaultPollInterval)
	_ = v.BindEnv(KeyBackend, "STOREFRONT_BACKEND")
	_ = v.BindEnv(KeyServerURL, "STOREFRONT_SERVER_URL")

	v.SetConfigFile(filepath.Join(configDir, FileName))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return CLI{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := CLI{
		Backend:      v.GetString(KeyBackend),
		DataDir:      v.GetString(KeyDataDir),
		ServerURL:    v.GetString(KeyServerURL),
		Debounce:     v.GetDuration(KeyDebounce),
		PollInterval: v.GetDuration(KeyPollInterval),
	}
	if cfg.Debounce < 0 || cfg.PollInterval < 0 {
		return CLI{}, ErrDurationInvalid
	}
	return cfg, nil
}

// fileContents is the on-disk shape written by WriteDefault.
type fileContents struct {
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir,omitempty"`
	ServerURL    string `yaml:"server_url"`
	Debounce     string `yaml:"debounce"`
	PollInterval string `yaml:"poll_interval"`
}

// WriteDefault creates configDir and writes a config.yaml with the default
// settings, recording backend and dataDir when they are non-empty. An
// existing file is left untouched and created reports false.
func WriteDefault(configDir, backend, dataDir string) (created bool, err error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	path := filepath.Join(configDir, FileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	if backend == "" {
		backend = DefaultBackend
	}
	data, err := yaml.Marshal(fileContents{
		Backend:      backend,
		DataDir:      dataDir,
		ServerURL:    DefaultServerURL,
		Debounce:     counter.DefaultDebounce.String(),
		PollInterval: types.DefaultPollInterval.String(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}

	header := []byte("# storefront CLI configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
