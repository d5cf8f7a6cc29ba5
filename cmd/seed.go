package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelq/app"
	"github.com/kilianp07/fuelq/internal/seed"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Register stations and quotas from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				sum, err := f.Apply(ctx, svc.Engine)
				if err != nil {
					return err
				}
				return printJSON(cmd, sum)
			})
		},
	}
}
