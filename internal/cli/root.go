// Package cli implements gcctl, the operator command line for the billing server.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavkata12/app/pkg/client"
	"github.com/pavkata12/app/pkg/output"
)

// app carries state shared by every command of one invocation
type app struct {
	cfgFile  string
	endpoint string
	token    string
	timeout  time.Duration

	cfg   *Config
	stdin io.Reader
}

// NewRootCommand builds the gcctl command tree
func NewRootCommand() *cobra.Command {
	a := &app{stdin: os.Stdin}

	root := &cobra.Command{
		Use:   "gcctl",
		Short: "Gaming center billing CLI",
		Long: `A command-line interface for the gaming center billing server.
Registers computers and tariffs, opens and closes metered sessions,
records payments and prints daily reports.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a.cfg, err = LoadConfig(a.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.gcctl/config.yaml)")
	flags.StringVar(&a.endpoint, "server", "", "billing server URL (overrides server.endpoint)")
	flags.StringVar(&a.token, "token", "", "operator token (overrides auth.token)")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		a.newLoginCommand(),
		a.newLogoutCommand(),
		a.newHealthCommand(),
		a.newComputersCommand(),
		a.newTariffsCommand(),
		a.newSessionsCommand(),
		a.newPaymentsCommand(),
		a.newSettingsCommand(),
		a.newReportCommand(),
	)
	return root
}

// Execute runs gcctl and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) serverEndpoint() string {
	if a.endpoint != "" {
		return a.endpoint
	}
	return a.cfg.Server.Endpoint
}

func (a *app) client() *client.Client {
	token := a.token
	if token == "" {
		token = a.cfg.Auth.Token
	}
	return client.New(a.serverEndpoint(), client.WithToken(token))
}

// withOutput adds --output to a leaf command and rejects unknown formats before RunE
func withOutput(cmd *cobra.Command) *cobra.Command {
	output.AddFormatFlag(cmd)
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		_, err := output.GetFormatFromCmd(cmd)
		return err
	}
	return cmd
}

func (a *app) newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the billing server and its database answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			status, err := a.client().Health(ctx)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.serverEndpoint(), status)
			return nil
		},
	}
}
