// Package cli implements the storefront command-line interface. Each
// invocation is one browsing context attached to the configured local store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storefront/internal/config"
	"github.com/mesh-intelligence/storefront/internal/paths"
	"github.com/mesh-intelligence/storefront/pkg/localstore"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags     rootFlags
	logger    *slog.Logger
	cfg       config.CLI
	configDir string
}

// userError marks errors caused by bad input rather than a failing system.
type userError struct{ err error }

func (e userError) Error() string { return e.err.Error() }
func (e userError) Unwrap() error { return e.err }

func usageErr(format string, args ...any) error {
	return userError{err: fmt.Errorf(format, args...)}
}

// NewRootCmd creates the top-level "storefront" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	root := &cobra.Command{
		Use:   "storefront",
		Short: "Local-first storefront cart and session tool",
		Long: "storefront keeps a shopping cart and a mirrored login session in a\n" +
			"persistent local store shared by every context on this machine.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $"+paths.EnvConfigDir+" or the user config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: config data_dir, $"+paths.EnvDataDir+" or the user data dir)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug detail to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newCartCmd(a))
	root.AddCommand(newCounterCmd(a))
	root.AddCommand(newLoginCmd(a))
	root.AddCommand(newLogoutCmd(a))
	root.AddCommand(newSignupCmd(a))
	root.AddCommand(newWhoamiCmd(a))
	root.AddCommand(newSessionCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

func exitCode(err error) int {
	var ue userError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &ue),
		errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrInvalidItem),
		errors.Is(err, types.ErrIndexOutOfRange),
		errors.Is(err, types.ErrItemNotFound),
		errors.Is(err, types.ErrInvalidCredentials),
		errors.Is(err, types.ErrMissingFields):
		return exitUserError
	default:
		return exitSysError
	}
}

// setup installs the logger and loads config.yaml.
func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	a.configDir = configDir
	a.cfg = cfg
	a.logger.Debug("config loaded", "config_dir", configDir, "backend", cfg.Backend)
	return nil
}

// resolveDataDir applies the data directory precedence chain.
func (a *app) resolveDataDir() (string, error) {
	dir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.DataDir, a.configDir)
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return dir, nil
}

// openStore attaches this invocation's context to the configured backend.
// The caller must Detach the returned backend.
func (a *app) openStore() (types.Backend, error) {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return nil, err
	}
	backend, err := localstore.Open(a.cfg.StoreConfig(dataDir))
	if err != nil {
		return nil, err
	}
	a.logger.Debug("store attached", "backend", a.cfg.Backend, "data_dir", dataDir, "context", backend.ContextID())
	return backend, nil
}

// withStore runs fn against an attached store and detaches afterwards.
func (a *app) withStore(fn func(types.Store) error) error {
	backend, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Detach(); err != nil {
			a.logger.Warn("detach store", "error", err)
		}
	}()
	return fn(backend)
}
