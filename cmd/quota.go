package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelq/app"
	"github.com/kilianp07/fuelq/core/model"
)

func newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "quota", Short: "Inspect and manage vehicle quotas"}

	var getFuel string
	get := &cobra.Command{
		Use:   "get <registration-no>",
		Short: "Show the quotas of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				if getFuel == "" {
					qs, err := svc.Engine.ListQuotas(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd, qs)
				}
				ft, err := model.ParseFuelType(getFuel)
				if err != nil {
					return err
				}
				q, err := svc.Engine.GetQuota(ctx, args[0], ft)
				if err != nil {
					return err
				}
				return printJSON(cmd, q)
			})
		},
	}
	get.Flags().StringVar(&getFuel, "fuel", "", "fuel type, all when empty")

	var (
		setFuel string
		allowed float64
	)
	set := &cobra.Command{
		Use:   "set <registration-no>",
		Short: "Set the allowance of a vehicle for a fuel type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ft, err := model.ParseFuelType(setFuel)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				q, err := svc.Engine.SetQuotaAllowance(ctx, args[0], ft, allowed)
				if err != nil {
					return err
				}
				return printJSON(cmd, q)
			})
		},
	}
	set.Flags().StringVar(&setFuel, "fuel", "", "fuel type")
	set.Flags().Float64Var(&allowed, "allowed", 0, "litres allowed per period")

	var resetFuel, start string
	reset := &cobra.Command{
		Use:   "reset <registration-no>",
		Short: "Start a new quota period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ft, err := model.ParseFuelType(resetFuel)
			if err != nil {
				return err
			}
			var at time.Time
			if start != "" {
				if at, err = time.Parse(time.RFC3339, start); err != nil {
					return model.Validationf("invalid start %q", start)
				}
			}
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				q, err := svc.Engine.ResetQuotaPeriod(ctx, args[0], ft, at)
				if err != nil {
					return err
				}
				return printJSON(cmd, q)
			})
		},
	}
	reset.Flags().StringVar(&resetFuel, "fuel", "", "fuel type")
	reset.Flags().StringVar(&start, "start", "", "period start as RFC3339, now when empty")

	cmd.AddCommand(get, set, reset)
	return cmd
}
