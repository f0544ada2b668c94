package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/me/slotwise/pkg/model"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		algorithm string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules stored on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if algorithm != "" {
				q.Set("algorithm", algorithm)
			}
			resp, err := client.Get(cmd.Context(), "/api/v1/schedules/?"+q.Encode())
			if err != nil {
				return fmt.Errorf("list schedules: %w", err)
			}

			var data []model.ScheduleSummary
			if err := decodeData(resp, &data); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(data) == 0 {
				fmt.Fprintln(w, "No schedules found.")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tALGORITHM\tSCORE\tSCHEDULED\tUNSCHEDULED\tRANGE\tCREATED")
			for _, s := range data {
				fmt.Fprintf(tw, "%s\t%s\t%.3f\t%d\t%d\t%s\t%s\n",
					s.ID, s.Algorithm, s.OptimizationScore, s.Scheduled, s.Unscheduled,
					s.StartDate.Format("2006-01-02")+".."+s.EndDate.Format("2006-01-02"),
					humanize.Time(s.CreatedAt))
			}
			tw.Flush()

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(w, "\n(%d of %d shown)\n", len(data), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Only list schedules built with this algorithm")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of schedules")
	return cmd
}
