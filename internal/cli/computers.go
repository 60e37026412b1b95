package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavkata12/app/internal/models"
	"github.com/pavkata12/app/pkg/output"
)

func (a *app) newComputersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "computers",
		Aliases: []string{"computer", "pc"},
		Short:   "Manage gaming stations",
	}

	list := withOutput(&cobra.Command{
		Use:   "list",
		Short: "List registered computers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			computers, err := a.client().ListComputers(ctx)
			if err != nil {
				return fmt.Errorf("failed to list computers: %w", err)
			}
			return render(cmd, computers, func(f *output.Formatter) error {
				rows := make([][]string, 0, len(computers))
				for _, c := range computers {
					rows = append(rows, []string{
						formatID(c.ID), c.Name, c.IPAddress, string(c.Status), formatTimePtr(c.LastSeen),
					})
				}
				return f.Table([]string{"ID", "Name", "IP Address", "Status", "Last Seen"}, rows)
			})
		},
	})

	add := withOutput(&cobra.Command{
		Use:   "add <name> <ip-address>",
		Short: "Register a computer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			computer, err := a.client().RegisterComputer(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to register computer: %w", err)
			}
			return renderComputer(cmd, computer)
		},
	})

	show := withOutput(&cobra.Command{
		Use:   "show <computer-id>",
		Short: "Show one computer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("computer", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			computer, err := a.client().GetComputer(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get computer: %w", err)
			}
			return renderComputer(cmd, computer)
		},
	})

	status := withOutput(&cobra.Command{
		Use:   "status <computer-id> <offline|online|in-use>",
		Short: "Set a computer's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("computer", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			computer, err := a.client().UpdateComputerStatus(ctx, id, models.ComputerStatus(args[1]))
			if err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}
			return renderComputer(cmd, computer)
		},
	})

	heartbeat := withOutput(&cobra.Command{
		Use:   "heartbeat [ip-address]",
		Short: "Report a station as alive",
		Long:  "Report a station as alive. Without an address the server uses the caller's address.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ip string
			if len(args) == 1 {
				ip = args[0]
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			computer, err := a.client().Heartbeat(ctx, ip)
			if err != nil {
				return fmt.Errorf("heartbeat failed: %w", err)
			}
			return renderComputer(cmd, computer)
		},
	})

	usage := withOutput(&cobra.Command{
		Use:   "usage <computer-id>",
		Short: "Per-day usage of one computer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("computer", args[0])
			if err != nil {
				return err
			}
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")

			ctx, cancel := a.context(cmd)
			defer cancel()

			days, err := a.client().ComputerUsage(ctx, id, from, to)
			if err != nil {
				return fmt.Errorf("failed to get usage: %w", err)
			}
			return render(cmd, days, func(f *output.Formatter) error {
				rows := make([][]string, 0, len(days))
				for _, d := range days {
					rows = append(rows, []string{
						d.Date, fmt.Sprint(d.SessionsCount), fmt.Sprint(d.TotalMinutes), formatMoney(d.TotalRevenue),
					})
				}
				return f.Table([]string{"Date", "Sessions", "Minutes", "Revenue"}, rows)
			})
		},
	})
	usage.Flags().String("from", "", "first day, YYYY-MM-DD (default six days before --to)")
	usage.Flags().String("to", "", "last day, YYYY-MM-DD (default today)")

	cmd.AddCommand(list, add, show, status, heartbeat, usage)
	return cmd
}

func renderComputer(cmd *cobra.Command, c *models.Computer) error {
	return render(cmd, c, func(f *output.Formatter) error {
		return f.Fields(
			output.Field{Label: "ID", Value: formatID(c.ID)},
			output.Field{Label: "Name", Value: c.Name},
			output.Field{Label: "IP Address", Value: c.IPAddress},
			output.Field{Label: "Status", Value: string(c.Status)},
			output.Field{Label: "Last Seen", Value: formatTimePtr(c.LastSeen)},
		)
	})
}

// render prints data as JSON or hands the formatter to text
func render(cmd *cobra.Command, data interface{}, text func(*output.Formatter) error) error {
	f, err := output.FromCmd(cmd)
	if err != nil {
		return err
	}
	return f.Render(data, text)
}
