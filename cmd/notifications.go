package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelq/app"
	"github.com/kilianp07/fuelq/core/model"
)

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notifications", Short: "Read the notification inbox"}

	var unread bool
	list := &cobra.Command{
		Use:   "list <recipient>",
		Short: "List the notifications of a vehicle or station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				var (
					ns  []model.Notification
					err error
				)
				if unread {
					ns, err = svc.Engine.UnreadNotifications(ctx, args[0])
				} else {
					ns, err = svc.Engine.Notifications(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, ns)
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "only unread notifications")

	read := &cobra.Command{
		Use:   "read <recipient> [notification-id]...",
		Short: "Mark notifications read, all of them when no id is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *app.Service) error {
				n, err := svc.Engine.MarkNotificationsRead(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"marked": n})
			})
		},
	}

	cmd.AddCommand(list, read)
	return cmd
}
