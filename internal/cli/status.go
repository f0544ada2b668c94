package cli

import (
	"fmt"

	"github.com/me/slotwise/pkg/model"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "status <schedule_id>",
		Short: "Show metrics of a stored schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			w := cmd.OutOrStdout()

			resp, err := client.Get(cmd.Context(), "/api/v1/schedules/"+id+"/metrics")
			if err != nil {
				return fmt.Errorf("get schedule metrics: %w", err)
			}
			var m model.ScheduleMetrics
			if err := decodeData(resp, &m); err != nil {
				return err
			}

			fmt.Fprintf(w, "Schedule: %s\n", id)
			renderMetrics(w, m)

			if validate {
				resp, err := client.Post(cmd.Context(), "/api/v1/schedules/"+id+"/validate", nil)
				if err != nil {
					return fmt.Errorf("validate schedule: %w", err)
				}
				var report model.ValidationReport
				if err := decodeData(resp, &report); err != nil {
					return err
				}
				renderReport(w, report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Also re-check the schedule on the server")
	return cmd
}
