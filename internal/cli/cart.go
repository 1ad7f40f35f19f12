package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storefront/internal/cart"
	"github.com/mesh-intelligence/storefront/internal/counter"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// DefaultPage is the page key recorded for items added without --page.
const DefaultPage = "index"

func newCartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the shopping cart",
	}
	cmd.AddCommand(
		newCartAddCmd(a),
		newCartListCmd(a),
		newCartSetCmd(a),
		newCartRemoveCmd(a),
		newCartClearCmd(a),
		newCartSummaryCmd(a),
		newCartCountCmd(a),
		newCartExportCmd(a),
		newCartImportCmd(a),
	)
	return cmd
}

// withCart runs fn against the cart repository of an attached store.
func (a *app) withCart(fn func(*cart.Repository) error) error {
	return a.withStore(func(store types.Store) error {
		return fn(cart.NewRepository(store, cart.WithLogger(a.logger)))
	})
}

func newCartAddCmd(a *app) *cobra.Command {
	var (
		page, name, image string
		price             float64
		showCounter       bool
	)
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add one unit of a product to the cart",
		Long: "Add one unit of a product. Adding the same product from the same page\n" +
			"again increases its quantity instead of creating a new line.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var img *string
			if image != "" {
				img = &image
			}
			out := cmd.OutOrStdout()

			return a.withCart(func(repo *cart.Repository) error {
				var rec *counter.Reconciler
				if showCounter && !a.flags.jsonMode {
					rec = counter.NewReconciler(repo, counter.NewTextDisplay(out),
						counter.WithDebounce(a.cfg.Debounce), counter.WithLogger(a.logger))
					defer rec.Close()
					rec.Init()
					rec.OptimisticIncrement(1)
				}

				item, err := repo.Add(args[0], page, name, price, img)
				if err != nil {
					if rec != nil {
						rec.Sync(false)
					}
					return err
				}
				if rec != nil {
					rec.Sync(true)
				}

				if a.flags.jsonMode {
					return printJSON(out, item)
				}
				fmt.Fprintf(out, "Added %s (qty %d)\n", itemLabel(item), item.Qty)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&page, "page", DefaultPage, "page the product is added from")
	f.StringVar(&name, "name", "", "product name")
	f.Float64Var(&price, "price", 0, "unit price")
	f.StringVar(&image, "image", "", "product image URL")
	f.BoolVar(&showCounter, "counter", false, "show the cart counter while adding")
	return cmd
}

func newCartListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cart items in add order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(func(repo *cart.Repository) error {
				c := repo.Load()
				if a.flags.jsonMode {
					if c == nil {
						c = types.Cart{}
					}
					return printJSON(cmd.OutOrStdout(), c)
				}
				return writeCartTable(cmd.OutOrStdout(), c)
			})
		},
	}
}

func writeCartTable(w io.Writer, c types.Cart) error {
	if len(c) == 0 {
		_, err := fmt.Fprintln(w, "Cart is empty")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tPAGE\tNAME\tQTY\tPRICE\tTOTAL")
	for i, item := range c {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			i, item.ID, item.PageKey, item.Name, item.Qty,
			cart.FormatMoney(item.Price), cart.FormatMoney(item.LineTotal()))
	}
	return tw.Flush()
}

// itemTarget selects a cart line either by index or by (id, page).
type itemTarget struct {
	id   string
	page string
}

func (t *itemTarget) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.id, "id", "", "select the item by product id instead of index")
	cmd.Flags().StringVar(&t.page, "page", DefaultPage, "page key used with --id")
}

func newCartSetCmd(a *app) *cobra.Command {
	var target itemTarget
	cmd := &cobra.Command{
		Use:   "set [index] <qty>",
		Short: "Set the quantity of a cart line; zero or less removes it",
		Long: "Set the quantity of a cart line. A quantity of zero or less removes the\n" +
			"line. Flags go before the index; with --id, pass a negative quantity\n" +
			"after --, as in: cart set --id p1 -- -1",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseInt("qty", args[len(args)-1])
			if err != nil {
				return err
			}
			return a.withCart(func(repo *cart.Repository) error {
				if target.id != "" {
					if len(args) != 1 {
						return usageErr("set with --id takes only a quantity")
					}
					return repo.SetQtyByKey(target.id, target.page, qty)
				}
				if len(args) != 2 {
					return usageErr("set needs an index and a quantity")
				}
				index, err := parseInt("index", args[0])
				if err != nil {
					return err
				}
				return repo.SetQty(index, qty)
			})
		},
	}
	target.register(cmd)
	// A negative quantity after the index is an argument, not a flag.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newCartRemoveCmd(a *app) *cobra.Command {
	var target itemTarget
	cmd := &cobra.Command{
		Use:   "remove [index]",
		Short: "Remove a cart line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(func(repo *cart.Repository) error {
				if target.id != "" {
					return repo.RemoveByKey(target.id, target.page)
				}
				if len(args) != 1 {
					return usageErr("remove needs an index or --id")
				}
				index, err := parseInt("index", args[0])
				if err != nil {
					return err
				}
				return repo.Remove(index)
			})
		},
	}
	target.register(cmd)
	return cmd
}

func newCartClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cart line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(func(repo *cart.Repository) error {
				return repo.Replace(nil)
			})
		},
	}
}

func newCartSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show subtotal, shipping and total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(func(repo *cart.Repository) error {
				s := cart.Summarize(repo.Load())
				out := cmd.OutOrStdout()
				if a.flags.jsonMode {
					return printJSON(out, s)
				}
				fmt.Fprintf(out, "Subtotal: %s\nShipping: %s\nTotal:    %s\n",
					cart.FormatMoney(s.Subtotal), cart.FormatMoney(s.Shipping), cart.FormatMoney(s.Total))
				return nil
			})
		},
	}
}

func newCartCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the total quantity in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(func(repo *cart.Repository) error {
				n := repo.Count()
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]int{"count": n})
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newCartExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the cart as JSON lines to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(func(repo *cart.Repository) error {
				c := repo.Load()
				if len(args) == 0 {
					return cart.WriteJSONL(cmd.OutOrStdout(), c)
				}
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := cart.WriteJSONL(f, c); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close export file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", len(c), args[0])
				return nil
			})
		},
	}
}

func newCartImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the cart with JSON lines read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return usageErr("open import file: %w", err)
				}
				defer f.Close()
				in = f
			}
			c, skipped, err := cart.ReadJSONL(in)
			if err != nil {
				return err
			}
			if skipped > 0 {
				a.logger.Warn("skipped unreadable cart lines", "count", skipped)
			}

			return a.withCart(func(repo *cart.Repository) error {
				if err := repo.Replace(c); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]int{"imported": len(repo.Load()), "skipped": skipped})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items (skipped %d)\n", len(repo.Load()), skipped)
				return nil
			})
		},
	}
}

func itemLabel(item types.CartItem) string {
	if item.Name != "" {
		return item.Name
	}
	return item.ID
}

func parseInt(what, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, usageErr("invalid %s %q", what, s)
	}
	return n, nil
}
