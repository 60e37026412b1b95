package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *app) newLoginCommand() *cobra.Command {
	var key, operator string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain an operator token",
		Long: `Exchange the operator key for a signed token and store it in the config file.
The key is read from the terminal unless --key is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if operator == "" {
				operator = a.cfg.Auth.Operator
			}

			if key == "" {
				var err error
				if key, err = a.readKey(cmd); err != nil {
					return err
				}
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			token, err := a.client().IssueToken(ctx, operator, key)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			a.cfg.Server.Endpoint = a.serverEndpoint()
			a.cfg.Auth.Operator = operator
			a.cfg.Auth.Token = token.Token
			a.cfg.Auth.ExpiresAt = token.ExpiresAt
			if err := a.cfg.Save(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s, token expires %s\n", operator, formatTime(token.ExpiresAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "operator key (for non-interactive use)")
	cmd.Flags().StringVar(&operator, "operator", "", "operator name recorded in the token")
	return cmd
}

// readKey prompts without echo on a terminal and reads one line otherwise
func (a *app) readKey(cmd *cobra.Command) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Operator key: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read operator key: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read operator key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored operator token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Auth.Token = ""
			a.cfg.Auth.ExpiresAt = time.Time{}
			if err := a.cfg.Save(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
