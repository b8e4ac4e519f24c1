package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotifyCmd(app *App) *cobra.Command {
	var (
		title string
		body  string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification through the resolved capability",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title is required")
			}
			dispatcher := app.buildDispatcher()
			defer dispatcher.Close()
			return dispatcher.DeliverNow(cmd.Context(), title, body)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "notification title")
	cmd.Flags().StringVarP(&body, "body", "b", "", "notification body")
	return cmd
}
