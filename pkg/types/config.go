package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for Backend.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// PollInterval bounds how long a context may go without noticing a write
	// made by another context when filesystem notifications are missed.
	// Zero selects DefaultPollInterval. Ignored by the memory backend.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// Supported backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// DefaultPollInterval is the change-log poll interval used when Config leaves it unset.
const DefaultPollInterval = 500 * time.Millisecond

// Config validation errors.
var (
	ErrBackendEmpty        = errors.New("backend must not be empty")
	ErrBackendUnknown      = errors.New("unknown backend")
	ErrPollIntervalInvalid = errors.New("poll interval must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendMemory: true,
	BackendSQLite: true,
	BackendFile:   true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.PollInterval < 0 {
		return ErrPollIntervalInvalid
	}
	return nil
}

// GetPollInterval returns PollInterval, or DefaultPollInterval when unset.
func (c Config) GetPollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}
