package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavkata12/app/internal/models"
	"github.com/pavkata12/app/pkg/client"
	"github.com/pavkata12/app/pkg/output"
)

func (a *app) newTariffsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tariffs",
		Aliases: []string{"tariff"},
		Short:   "Manage hourly tariffs",
	}

	list := withOutput(&cobra.Command{
		Use:   "list",
		Short: "List tariffs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			ctx, cancel := a.context(cmd)
			defer cancel()

			tariffs, err := a.client().ListTariffs(ctx, all)
			if err != nil {
				return fmt.Errorf("failed to list tariffs: %w", err)
			}
			return render(cmd, tariffs, func(f *output.Formatter) error {
				rows := make([][]string, 0, len(tariffs))
				for _, t := range tariffs {
					rows = append(rows, []string{
						formatID(t.ID), t.Name, formatMoney(t.PricePerHour), fmt.Sprint(t.IsActive), t.Description,
					})
				}
				return f.Table([]string{"ID", "Name", "Per Hour", "Active", "Description"}, rows)
			})
		},
	})
	list.Flags().Bool("all", false, "include deactivated tariffs")

	add := withOutput(&cobra.Command{
		Use:   "add <name> <price-per-hour>",
		Short: "Create a tariff",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseAmount("price", args[1])
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")

			ctx, cancel := a.context(cmd)
			defer cancel()

			tariff, err := a.client().CreateTariff(ctx, client.TariffRequest{
				Name:         args[0],
				PricePerHour: price,
				Description:  description,
			})
			if err != nil {
				return fmt.Errorf("failed to create tariff: %w", err)
			}
			return renderTariff(cmd, tariff)
		},
	})
	add.Flags().String("description", "", "free-form description")

	update := withOutput(&cobra.Command{
		Use:   "update <tariff-id> <name> <price-per-hour>",
		Short: "Replace a tariff's name, price and description",
		Long:  "Replace a tariff's name, price and description. Closed sessions keep the amount they were billed.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tariff", args[0])
			if err != nil {
				return err
			}
			price, err := parseAmount("price", args[2])
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")

			ctx, cancel := a.context(cmd)
			defer cancel()

			tariff, err := a.client().UpdateTariff(ctx, id, client.TariffRequest{
				Name:         args[1],
				PricePerHour: price,
				Description:  description,
			})
			if err != nil {
				return fmt.Errorf("failed to update tariff: %w", err)
			}
			return renderTariff(cmd, tariff)
		},
	})
	update.Flags().String("description", "", "free-form description")

	deactivate := a.tariffToggleCommand("deactivate", "Hide a tariff from new sessions",
		func(c *client.Client) func(context.Context, int64) (*models.Tariff, error) { return c.DeactivateTariff })
	activate := a.tariffToggleCommand("activate", "Make a tariff available for new sessions",
		func(c *client.Client) func(context.Context, int64) (*models.Tariff, error) { return c.ActivateTariff })

	cmd.AddCommand(list, add, update, deactivate, activate)
	return cmd
}

func (a *app) tariffToggleCommand(name, short string, op func(*client.Client) func(context.Context, int64) (*models.Tariff, error)) *cobra.Command {
	return withOutput(&cobra.Command{
		Use:   name + " <tariff-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tariff", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			tariff, err := op(a.client())(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to %s tariff: %w", name, err)
			}
			return renderTariff(cmd, tariff)
		},
	})
}

func renderTariff(cmd *cobra.Command, t *models.Tariff) error {
	return render(cmd, t, func(f *output.Formatter) error {
		return f.Fields(
			output.Field{Label: "ID", Value: formatID(t.ID)},
			output.Field{Label: "Name", Value: t.Name},
			output.Field{Label: "Per Hour", Value: formatMoney(t.PricePerHour)},
			output.Field{Label: "Active", Value: fmt.Sprint(t.IsActive)},
			output.Field{Label: "Description", Value: t.Description},
		)
	})
}
