package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storefront/internal/session"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

func newSignupCmd(a *app) *cobra.Command {
	var (
		s                 session.Signup
		password, confirm string
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Validate a signup form and remember the name and email locally",
		Long: "Check the signup form and report every field that fails. An accepted\n" +
			"form keeps the name and email in the local store; the password is\n" +
			"never stored. Without --password and --confirm, the password and its\n" +
			"confirmation are read from the first two lines of stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if s.Password, err = flagOrLine(cmd, "password", password, in); err != nil {
				return err
			}
			if s.Confirm, err = flagOrLine(cmd, "confirm", confirm, in); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return a.withStore(func(store types.Store) error {
				err := session.RecordSignup(store, s)
				var verrs session.ValidationErrors
				if errors.As(err, &verrs) {
					if a.flags.jsonMode {
						return errors.Join(printJSON(out, verrs), err)
					}
					for _, fe := range verrs {
						fmt.Fprintf(out, "%s: %s\n", fe.Field, fe.Message)
					}
					fmt.Fprintf(out, "Password strength: %d/5\n", session.PasswordScore(s.Password))
					return err
				}
				if err != nil {
					return err
				}

				a.logger.Debug("signup recorded", "email", strings.TrimSpace(s.Email))
				if a.flags.jsonMode {
					name, email := session.LoadSignup(store)
					return printJSON(out, map[string]string{"name": name, "email": email})
				}
				fmt.Fprintln(out, session.MsgSignupSuccess)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&s.Name, "name", "", "full name")
	f.StringVar(&s.Email, "email", "", "email address")
	f.StringVar(&s.Phone, "phone", "", "phone number (optional)")
	f.StringVar(&password, "password", "", "account password")
	f.StringVar(&confirm, "confirm", "", "password confirmation")
	f.BoolVar(&s.AcceptTerms, "accept-terms", false, "accept the terms of service")
	return cmd
}

// flagOrLine returns the flag's value when it was set, otherwise the next
// line of in.
func flagOrLine(cmd *cobra.Command, name, value string, in *bufio.Reader) (string, error) {
	if cmd.Flags().Changed(name) {
		return value, nil
	}
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
