package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavkata12/app/internal/models"
	"github.com/pavkata12/app/pkg/client"
	"github.com/pavkata12/app/pkg/output"
)

func (a *app) newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Open, close and inspect metered sessions",
	}

	open := withOutput(&cobra.Command{
		Use:   "open <computer-id> <tariff-id>",
		Short: "Start a session on a computer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			computerID, err := parseID("computer", args[0])
			if err != nil {
				return err
			}
			tariffID, err := parseID("tariff", args[1])
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("start")
			start, err := parseTimeFlag("start", raw)
			if err != nil {
				return err
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			session, err := a.client().OpenSession(ctx, computerID, tariffID, start)
			if err != nil {
				return fmt.Errorf("failed to open session: %w", err)
			}
			return renderSession(cmd, session)
		},
	})
	open.Flags().String("start", "", "start time (default now on the server)")

	closeCmd := withOutput(&cobra.Command{
		Use:   "close <session-id>",
		Short: "End a session and compute its charge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("end")
			end, err := parseTimeFlag("end", raw)
			if err != nil {
				return err
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			session, err := a.client().CloseSession(ctx, id, end)
			if err != nil {
				return fmt.Errorf("failed to close session: %w", err)
			}
			return renderSession(cmd, session)
		},
	})
	closeCmd.Flags().String("end", "", "end time (default now on the server)")

	cancelCmd := withOutput(&cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Cancel an active session without billing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			session, err := a.client().CancelSession(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to cancel session: %w", err)
			}
			return renderSession(cmd, session)
		},
	})

	show := withOutput(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			session, err := a.client().GetSession(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get session: %w", err)
			}
			return renderSession(cmd, session)
		},
	})

	active := withOutput(&cobra.Command{
		Use:   "active",
		Short: "List active sessions with computer and tariff names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			sessions, err := a.client().ListActiveSessions(ctx)
			if err != nil {
				return fmt.Errorf("failed to list active sessions: %w", err)
			}
			return render(cmd, sessions, func(f *output.Formatter) error {
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{
						formatID(s.ID), s.ComputerName, s.TariffName, formatMoney(s.PricePerHour), formatTime(s.StartTime),
					})
				}
				return f.Table([]string{"ID", "Computer", "Tariff", "Per Hour", "Started"}, rows)
			})
		},
	})

	list := withOutput(&cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var query client.SessionQuery
			query.ComputerID, _ = cmd.Flags().GetInt64("computer")
			query.Limit, _ = cmd.Flags().GetInt("limit")
			if raw, _ := cmd.Flags().GetString("status"); raw != "" {
				status, err := models.ParseSessionStatus(raw)
				if err != nil {
					return err
				}
				query.Status = status
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			sessions, err := a.client().ListSessions(ctx, query)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			return render(cmd, sessions, func(f *output.Formatter) error {
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, sessionRow(s))
				}
				return f.Table([]string{"ID", "Computer", "Tariff", "Status", "Started", "Ended", "Minutes", "Amount"}, rows)
			})
		},
	})
	list.Flags().Int64("computer", 0, "only sessions of this computer id")
	list.Flags().String("status", "", "active, closed or cancelled")
	list.Flags().Int("limit", 50, "maximum number of sessions")

	cmd.AddCommand(open, closeCmd, cancelCmd, show, active, list)
	return cmd
}

func sessionRow(s *models.Session) []string {
	return []string{
		formatID(s.ID),
		formatID(s.ComputerID),
		formatID(s.TariffID),
		string(s.Status),
		formatTime(s.StartTime),
		formatTimePtr(s.EndTime),
		formatMinutes(s.DurationMinutes),
		formatNullMoney(s.AmountPaid),
	}
}

func renderSession(cmd *cobra.Command, s *models.Session) error {
	return render(cmd, s, func(f *output.Formatter) error {
		return f.Fields(
			output.Field{Label: "ID", Value: formatID(s.ID)},
			output.Field{Label: "Computer", Value: formatID(s.ComputerID)},
			output.Field{Label: "Tariff", Value: formatID(s.TariffID)},
			output.Field{Label: "Status", Value: string(s.Status)},
			output.Field{Label: "Started", Value: formatTime(s.StartTime)},
			output.Field{Label: "Ended", Value: formatTimePtr(s.EndTime)},
			output.Field{Label: "Minutes", Value: formatMinutes(s.DurationMinutes)},
			output.Field{Label: "Amount", Value: formatNullMoney(s.AmountPaid)},
		)
	})
}
