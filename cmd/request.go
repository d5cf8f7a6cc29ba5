package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelq/app"
	"github.com/kilianp07/fuelq/core/model"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "request", Short: "Submit and inspect fuel requests"}

	var (
		sub  model.Submission
		fuel string
		kind string
	)
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit a request to one or more stations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ft, err := model.ParseFuelType(fuel)
			if err != nil {
				return err
			}
			sub.FuelType = ft
			sub.UserType = model.UserType(kind)
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				req, err := svc.Engine.SubmitRequest(ctx, sub)
				if err != nil {
					return err
				}
				return printJSON(cmd, req)
			})
		},
	}
	f := submit.Flags()
	f.StringVar(&sub.UserID, "user", "", "user id")
	f.StringVar(&kind, "user-type", string(model.UserPersonal), "personal or organization")
	f.StringVar(&sub.RegistrationNo, "reg-no", "", "vehicle registration number")
	f.StringVar(&fuel, "fuel", "", "fuel type")
	f.Float64Var(&sub.Amount, "amount", 0, "requested litres")
	f.StringSliceVar(&sub.RequestedStations, "station", nil, "station registration number, repeatable")
	f.IntVar(&sub.Priority, "priority", 0, "priority, higher is served first")

	var reason string
	cancel := &cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Cancel a pending or waiting request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				req, err := svc.Engine.CancelRequest(ctx, args[0], reason)
				if err != nil {
					return err
				}
				return printJSON(cmd, req)
			})
		},
	}
	cancel.Flags().StringVar(&reason, "reason", "cancelled by user", "cancellation reason")

	get := &cobra.Command{
		Use:   "get <request-id>",
		Short: "Show a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				req, err := svc.Engine.GetRequest(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, req)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <registration-no>",
		Short: "List the requests of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				reqs, err := svc.Engine.ListSubjectRequests(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, reqs)
			})
		},
	}

	cmd.AddCommand(submit, cancel, get, list)
	return cmd
}
