package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// Server configures the auth server started by "storefront serve".
type Server struct {
	Addr           string        `env:"STOREFRONT_ADDR"            envDefault:":8080"`
	UsersDriver    string        `env:"STOREFRONT_USERS_DRIVER"    envDefault:"sqlite"`
	UsersDSN       string        `env:"STOREFRONT_USERS_DSN"`
	SeedDemo       bool          `env:"STOREFRONT_SEED_DEMO"       envDefault:"true"`
	SessionTTL     time.Duration `env:"STOREFRONT_SESSION_TTL"     envDefault:"24h"`
	AllowedOrigins []string      `env:"STOREFRONT_ALLOWED_ORIGINS" envSeparator:","`
	SecureCookies  bool          `env:"STOREFRONT_SECURE_COOKIES"`
	BcryptCost     int           `env:"STOREFRONT_BCRYPT_COST"     envDefault:"10"`
}

// LoadServer parses Server from the process environment.
func LoadServer() (Server, error) {
	return parseServer(env.Options{})
}

// LoadServerFrom parses Server from the given variables instead of the
// process environment.
func LoadServerFrom(vars map[string]string) (Server, error) {
	return parseServer(env.Options{Environment: vars})
}

func parseServer(opts env.Options) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Server{}, fmt.Errorf("parse env: bcrypt cost %d out of range", cfg.BcryptCost)
	}
	return cfg, nil
}

// DSN returns UsersDSN, defaulting a sqlite users database to users.db in
// dataDir.
func (s Server) DSN(dataDir string) string {
	if s.UsersDSN != "" || s.UsersDriver != "sqlite" {
		return s.UsersDSN
	}
	return filepath.Join(dataDir, "users.db")
}
