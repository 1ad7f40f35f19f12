package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storefront/internal/authrpc"
	"github.com/mesh-intelligence/storefront/internal/session"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// authView renders the session controller's output as terminal text, or as
// the auth header HTML fragment when html is set. Text output marks an
// identity the server has not confirmed in this run.
type authView struct {
	out      io.Writer
	html     bool
	renderer *session.HTMLRenderer
	logger   *slog.Logger
	verified func() bool
}

func (v *authView) SetSubmitting(submitting bool) {
	v.logger.Debug("login control", "submitting", submitting)
}

func (v *authView) ShowMessage(m session.Message) {
	fmt.Fprintln(v.out, m.Text)
}

func (v *authView) RenderAuth(p session.Presentation) {
	if v.html {
		if err := v.renderer.Render(v.out, p); err != nil {
			v.logger.Warn("render auth header", "error", err)
		}
		return
	}
	if !p.LoggedIn {
		fmt.Fprintln(v.out, "Not logged in")
		return
	}
	if v.verified != nil && !v.verified() {
		fmt.Fprintf(v.out, "Logged in as %s (not verified)\n", p.DisplayName)
		return
	}
	fmt.Fprintf(v.out, "Logged in as %s\n", p.DisplayName)
}

// withController runs fn with a session controller attached to the store
// and pointed at the configured server. Background logout calls are
// drained before the store is detached.
func (a *app) withController(out io.Writer, html bool, fn func(*session.Controller) error) error {
	client, err := authrpc.New(a.cfg.ServerURL)
	if err != nil {
		return err
	}
	return a.withStore(func(store types.Store) error {
		mirror := session.NewMirror(store)
		view := &authView{out: out, html: html, renderer: session.NewHTMLRenderer(), logger: a.logger, verified: mirror.Trusted}
		ctrl := session.NewController(mirror, client, view,
			session.WithControllerLogger(a.logger))
		defer ctrl.Wait()
		return fn(ctrl)
	})
}

func newLoginCmd(a *app) *cobra.Command {
	var password string
	var check bool
	cmd := &cobra.Command{
		Use:   "login <email-or-username>",
		Short: "Sign in and mirror the identity into the local store",
		Long: "Sign in against the configured server. The password is read from\n" +
			"--password, or from the first line of stdin when the flag is absent.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := flagOrLine(cmd, "password", password, bufio.NewReader(cmd.InOrStdin()))
			if err != nil {
				return err
			}

			return a.withController(cmd.OutOrStdout(), false, func(ctrl *session.Controller) error {
				if err := ctrl.Login(cmd.Context(), args[0], pw); err != nil {
					return err
				}
				if check {
					_, err := ctrl.Check(cmd.Context())
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&check, "check", false, "confirm the new session with the server before exiting")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the mirrored identity and notify the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.OutOrStdout(), false, func(ctrl *session.Controller) error {
				return ctrl.Logout(cmd.Context())
			})
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	var html, menu bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the mirrored identity without contacting the server",
		Long: "Show the mirrored identity. The server is not contacted, so a\n" +
			"logged-in identity is reported as not verified.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store types.Store) error {
				mirror := session.NewMirror(store)
				identity, ok := mirror.Load()
				out := cmd.OutOrStdout()
				if a.flags.jsonMode {
					if !ok {
						return printJSON(out, nil)
					}
					return printJSON(out, identity)
				}

				var p session.Presentation
				if ok {
					p = session.Present(&identity, menu)
				}
				view := &authView{out: out, html: html, renderer: session.NewHTMLRenderer(), logger: a.logger, verified: mirror.Trusted}
				view.RenderAuth(p)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "render the auth header HTML fragment")
	cmd.Flags().BoolVar(&menu, "menu", false, "render the account menu open")
	return cmd
}

func newSessionCmd(a *app) *cobra.Command {
	var html bool
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Reconcile the mirrored identity with the server",
		Long: "Ask the server whether this client holds a live session and update the\n" +
			"mirror to match. Each invocation starts without the server cookie, like\n" +
			"a restarted browser, so an identity mirrored by an earlier run is\n" +
			"reported stale and cleared. When the server cannot be reached the\n" +
			"mirror is kept and shown as not verified.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.OutOrStdout(), html, func(ctrl *session.Controller) error {
				if _, err := ctrl.Check(cmd.Context()); err != nil {
					// The mirror is kept when the server cannot answer.
					ctrl.RenderAuth()
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "render the auth header HTML fragment")
	return cmd
}
