package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelq/app"
	"github.com/kilianp07/fuelq/core/model"
)

func newStationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "station", Short: "Manage station stock"}

	stockOp := func(use, short string, op func(ctx context.Context, svc *app.Service, station string, fuel model.FuelType, amount float64) (model.Stock, error)) *cobra.Command {
		var (
			fuel   string
			amount float64
		)
		c := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ft, err := model.ParseFuelType(fuel)
				if err != nil {
					return err
				}
				return withService(cmd, func(ctx context.Context, svc *app.Service) error {
					s, err := op(ctx, svc, args[0], ft, amount)
					if err != nil {
						return err
					}
					return printJSON(cmd, s)
				})
			},
		}
		c.Flags().StringVar(&fuel, "fuel", "", "fuel type")
		c.Flags().Float64Var(&amount, "amount", 0, "litres")
		return c
	}

	register := stockOp("register <station>", "Register a station with its initial stock",
		func(ctx context.Context, svc *app.Service, station string, fuel model.FuelType, amount float64) (model.Stock, error) {
			return svc.Engine.RegisterStation(ctx, station, fuel, amount)
		})
	refill := stockOp("refill <station>", "Add a delivery to a station's stock",
		func(ctx context.Context, svc *app.Service, station string, fuel model.FuelType, amount float64) (model.Stock, error) {
			return svc.Engine.RefillStation(ctx, station, fuel, amount)
		})

	stock := &cobra.Command{
		Use:   "stock <station>",
		Short: "Show the stock of every fuel type at a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				s, err := svc.Engine.ListStationStock(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}

	cmd.AddCommand(register, refill, stock)
	return cmd
}
