package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pedex/cmd/internal/app"
	"pedex/cmd/internal/auth/session"
)

var (
	loginEmail         string
	loginPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the credential pair",
	Long: `Sign in with email and password. The password is read from PEDEX_PASSWORD,
or from the first line of stdin with --password-stdin.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, err := a.Controller().Login(cmd.Context(), loginEmail, password)
		var restricted *session.RestrictedError
		switch {
		case errors.As(err, &restricted):
			return fmt.Errorf("account restricted: %s", restricted.Standing.Message())
		case err != nil:
			return err
		}

		out := cmd.OutOrStdout()
		switch outcome {
		case session.OutcomeAlreadyAuthenticated:
			fmt.Fprintln(out, "already signed in")
		default:
			id := a.Controller().Identity()
			fmt.Fprintf(out, "signed in as %s (%s)\n", id.Email, strings.Join(id.Roles.Strings(), ","))
		}
		return nil
	},
}

func readPassword(cmd *cobra.Command) (string, error) {
	if !loginPasswordStdin {
		if p := os.Getenv("PEDEX_PASSWORD"); p != "" {
			return p, nil
		}
		return "", errors.New("no password: set PEDEX_PASSWORD or use --password-stdin")
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = loginCmd.MarkFlagRequired("email")
}
