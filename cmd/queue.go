package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelq/app"
	"github.com/kilianp07/fuelq/core/model"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "queue", Short: "Announce, activate and fill station queues"}

	var fuel string
	waiting := &cobra.Command{
		Use:   "waiting <station>",
		Short: "List the waiting queue of a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ft, err := model.ParseFuelType(fuel)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				refs, err := svc.Engine.ListWaitingQueue(ctx, args[0], ft)
				if err != nil {
					return err
				}
				return printJSON(cmd, refs)
			})
		},
	}
	waiting.Flags().StringVar(&fuel, "fuel", "", "fuel type")

	var filter struct{ station, fuel, state string }
	list := &cobra.Command{
		Use:   "list",
		Short: "List announced queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := model.QueueFilter{StationRegNo: filter.station, State: model.QueueState(filter.state)}
			if filter.fuel != "" {
				ft, err := model.ParseFuelType(filter.fuel)
				if err != nil {
					return err
				}
				f.FuelType = ft
			}
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				qs, err := svc.Engine.ListAnnouncedQueues(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(cmd, qs)
			})
		},
	}
	list.Flags().StringVar(&filter.station, "station", "", "station registration number")
	list.Flags().StringVar(&filter.fuel, "fuel", "", "fuel type")
	list.Flags().StringVar(&filter.state, "state", "", "announced, active or closed")

	get := &cobra.Command{
		Use:   "get <queue-id>",
		Short: "Show an announced queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				q, err := svc.Engine.GetQueue(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, q)
			})
		},
	}

	var announceFuel string
	announce := &cobra.Command{
		Use:   "announce <station> <request-id>...",
		Short: "Promote waiting requests into an announced queue",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ft, err := model.ParseFuelType(announceFuel)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				res, err := svc.Engine.AnnounceQueue(ctx, args[0], ft, args[1:])
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	announce.Flags().StringVar(&announceFuel, "fuel", "", "fuel type")

	activate := &cobra.Command{
		Use:   "activate <queue-id>",
		Short: "Start serving an announced queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				q, err := svc.Engine.ActivateQueue(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, q)
			})
		},
	}

	fill := &cobra.Command{
		Use:   "fill <queue-id> <request-id> <litres>",
		Short: "Record the amount dispensed to a request",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			filled, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return model.Validationf("invalid amount %q", args[2])
			}
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				res, err := svc.Engine.FillRequest(ctx, args[0], args[1], filled)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}

	cmd.AddCommand(waiting, list, get, announce, activate, fill)
	return cmd
}
