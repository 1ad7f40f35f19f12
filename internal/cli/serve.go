package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storefront/internal/authserver"
	"github.com/mesh-intelligence/storefront/internal/config"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the login/logout/session server",
		Long: "Run the auth server. Settings come from STOREFRONT_* environment\n" +
			"variables; a sqlite users database defaults to users.db in the data\n" +
			"directory. Runs until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return usageErr("%w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}

			dataDir, err := a.resolveDataDir()
			if err != nil {
				return err
			}
			if cfg.UsersDriver == authserver.DriverSQLite && cfg.UsersDSN == "" {
				if err := os.MkdirAll(dataDir, 0o755); err != nil {
					return fmt.Errorf("create data directory: %w", err)
				}
			}

			ctx := cmd.Context()
			users, err := authserver.OpenUserStore(ctx, cfg.UsersDriver, cfg.DSN(dataDir))
			if err != nil {
				return err
			}
			defer users.Close()

			if cfg.SeedDemo {
				if err := authserver.SeedDemoUser(ctx, users, cfg.BcryptCost); err != nil {
					return fmt.Errorf("seed demo user: %w", err)
				}
				a.logger.Info("demo user ready", "email", authserver.DemoEmail, "username", authserver.DemoUsername)
			}

			srv := authserver.New(users,
				authserver.WithLogger(a.logger),
				authserver.WithSessionStore(authserver.NewSessionStore(cfg.SessionTTL)),
				authserver.WithAllowedOrigins(cfg.AllowedOrigins),
				authserver.WithSecureCookies(cfg.SecureCookies),
			)
			return srv.ListenAndServe(ctx, cfg.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides STOREFRONT_ADDR)")
	return cmd
}
