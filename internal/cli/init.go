package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storefront/internal/cart"
	"github.com/mesh-intelligence/storefront/internal/config"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize storefront configuration and storage",
		Long: "Create the configuration directory with a default config.yaml, then\n" +
			"attach to the data directory once and store an empty cart.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if backend != "" {
				if err := (types.Config{Backend: backend}).Validate(); err != nil {
					return usageErr("backend %q: %w", backend, err)
				}
				a.cfg.Backend = backend
			}

			created, err := config.WriteDefault(a.configDir, a.cfg.Backend, a.flags.dataDir)
			if err != nil {
				return err
			}
			if created {
				a.logger.Debug("wrote default config", "config_dir", a.configDir)
			}

			err = a.withStore(func(store types.Store) error {
				return cart.NewRepository(store, cart.WithLogger(a.logger)).Init()
			})
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Storefront initialized successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "backend recorded in a new config.yaml (memory, sqlite or file)")
	return cmd
}
