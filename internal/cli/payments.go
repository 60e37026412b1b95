package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavkata12/app/internal/models"
	"github.com/pavkata12/app/pkg/output"
)

func (a *app) newPaymentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "payments",
		Aliases: []string{"payment", "pay"},
		Short:   "Record and inspect payments against closed sessions",
	}

	record := withOutput(&cobra.Command{
		Use:   "record <session-id> <amount>",
		Short: "Record a payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			method, _ := cmd.Flags().GetString("method")

			ctx, cancel := a.context(cmd)
			defer cancel()

			payment, err := a.client().RecordPayment(ctx, id, amount, method)
			if err != nil {
				return fmt.Errorf("failed to record payment: %w", err)
			}
			return render(cmd, payment, func(f *output.Formatter) error {
				return f.Fields(
					output.Field{Label: "ID", Value: formatID(payment.ID)},
					output.Field{Label: "Session", Value: formatID(payment.SessionID)},
					output.Field{Label: "Amount", Value: formatMoney(payment.Amount)},
					output.Field{Label: "Method", Value: payment.Method},
					output.Field{Label: "Recorded", Value: formatTime(payment.CreatedAt)},
				)
			})
		},
	})
	record.Flags().String("method", models.PaymentCash, "payment method, e.g. cash or card")

	list := withOutput(&cobra.Command{
		Use:   "list <session-id>",
		Short: "Show a session's payments and outstanding balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			summary, err := a.client().PaymentSummary(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get payments: %w", err)
			}
			return render(cmd, summary, func(f *output.Formatter) error {
				rows := make([][]string, 0, len(summary.Payments))
				for _, p := range summary.Payments {
					rows = append(rows, []string{formatID(p.ID), formatMoney(p.Amount), p.Method, formatTime(p.CreatedAt)})
				}
				if err := f.Table([]string{"ID", "Amount", "Method", "Recorded"}, rows); err != nil {
					return err
				}
				return f.Fields(
					output.Field{Label: "Billed", Value: formatMoney(summary.Billed)},
					output.Field{Label: "Paid", Value: formatMoney(summary.Paid)},
					output.Field{Label: "Outstanding", Value: formatMoney(summary.Outstanding)},
				)
			})
		},
	})

	cmd.AddCommand(record, list)
	return cmd
}
