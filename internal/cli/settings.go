package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavkata12/app/pkg/output"
)

func (a *app) newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settings",
		Aliases: []string{"setting"},
		Short:   "Read and change server settings",
	}

	list := withOutput(&cobra.Command{
		Use:   "list",
		Short: "List all settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			settings, err := a.client().ListSettings(ctx)
			if err != nil {
				return fmt.Errorf("failed to list settings: %w", err)
			}
			return render(cmd, settings, func(f *output.Formatter) error {
				rows := make([][]string, 0, len(settings))
				for _, s := range settings {
					rows = append(rows, []string{s.Key, s.Value, formatTime(s.UpdatedAt)})
				}
				return f.Table([]string{"Key", "Value", "Updated"}, rows)
			})
		},
	})

	get := withOutput(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			setting, err := a.client().GetSetting(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get setting: %w", err)
			}
			return render(cmd, setting, func(f *output.Formatter) error {
				f.Printf("%s\n", setting.Value)
				return nil
			})
		},
	})

	set := withOutput(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			setting, err := a.client().SetSetting(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to set setting: %w", err)
			}
			return render(cmd, setting, func(f *output.Formatter) error {
				f.Printf("%s = %s\n", setting.Key, setting.Value)
				return nil
			})
		},
	})

	cmd.AddCommand(list, get, set)
	return cmd
}

func (a *app) newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Revenue and usage reports",
	}

	daily := withOutput(&cobra.Command{
		Use:   "daily [YYYY-MM-DD]",
		Short: "Totals for one local day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var date string
			if len(args) == 1 {
				date = args[0]
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			report, err := a.client().DailyReport(ctx, date)
			if err != nil {
				return fmt.Errorf("failed to get daily report: %w", err)
			}
			return render(cmd, report, func(f *output.Formatter) error {
				return f.Fields(
					output.Field{Label: "Date", Value: report.Date + " (" + report.Timezone + ")"},
					output.Field{Label: "Sessions", Value: fmt.Sprint(report.TotalSessions)},
					output.Field{Label: "Closed", Value: fmt.Sprint(report.ClosedSessions)},
					output.Field{Label: "Minutes", Value: fmt.Sprint(report.TotalMinutes)},
					output.Field{Label: "Revenue", Value: formatMoney(report.TotalRevenue) + " " + report.Currency},
					output.Field{Label: "Received", Value: formatMoney(report.PaymentsReceived) + " " + report.Currency},
				)
			})
		},
	})

	cmd.AddCommand(daily)
	return cmd
}
