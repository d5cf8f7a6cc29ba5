package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelq/app"
	"github.com/kilianp07/fuelq/core/allocation/logging"
	"github.com/kilianp07/fuelq/core/model"
)

func newJournalCmd() *cobra.Command {
	var (
		q          logging.LogQuery
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the allocation journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if start != "" {
				if q.Start, err = time.Parse(time.RFC3339, start); err != nil {
					return model.Validationf("invalid start %q", start)
				}
			}
			if end != "" {
				if q.End, err = time.Parse(time.RFC3339, end); err != nil {
					return model.Validationf("invalid end %q", end)
				}
			}
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				recs, err := svc.Journal.Query(ctx, q)
				if err != nil {
					return err
				}
				return printJSON(cmd, recs)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&start, "start", "", "earliest record as RFC3339")
	f.StringVar(&end, "end", "", "latest record as RFC3339")
	f.StringVar(&q.Operation, "operation", "", "operation name")
	f.StringVar(&q.Station, "station", "", "station registration number")
	f.StringVar(&q.RequestID, "request", "", "request id")
	f.StringVar(&q.QueueID, "queue", "", "queue id")
	f.IntVar(&q.Limit, "limit", 0, "keep only the latest n records")
	return cmd
}
