package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storefront/internal/cart"
	"github.com/mesh-intelligence/storefront/internal/counter"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

func newCounterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Cart counter display",
	}
	cmd.AddCommand(newCounterWatchCmd(a))
	return cmd
}

func newCounterWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the cart count whenever another context changes the cart",
		Long: "Print the current cart count, then a new line each time the cart is\n" +
			"changed by another context. Runs until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store types.Store) error {
				repo := cart.NewRepository(store, cart.WithLogger(a.logger))
				rec := counter.NewReconciler(repo, counter.NewTextDisplay(cmd.OutOrStdout()),
					counter.WithDebounce(a.cfg.Debounce), counter.WithLogger(a.logger))
				defer rec.Close()

				rec.Start(store)
				a.logger.Debug("watching cart", "context", store.ContextID())

				<-cmd.Context().Done()
				return nil
			})
		},
	}
}
