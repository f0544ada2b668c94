package cli

import (
	"fmt"

	"github.com/me/slotwise/pkg/model"
	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var (
		file      string
		algorithm string
		storeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Upload a request file to the server and compute a schedule there",
		Long: `Stores the resources, constraints and tasks of a request file on the
slotwise server, then asks the server to schedule those tasks over the
file's time_range. The schedule is persisted server side.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			req, err := loadRequest(file)
			if err != nil {
				return err
			}

			for _, res := range req.Resources {
				if _, err := client.Post(ctx, "/api/v1/resources/", res); err != nil {
					return fmt.Errorf("store resource %s: %w", res.ID, err)
				}
			}
			constraintIDs := make([]string, 0, len(req.Constraints))
			for _, c := range req.Constraints {
				resp, err := client.Post(ctx, "/api/v1/constraints/", c)
				if err != nil {
					return fmt.Errorf("store constraint %s: %w", c.ID, err)
				}
				var stored struct {
					ID string `json:"id"`
				}
				if err := decodeData(resp, &stored); err != nil {
					return err
				}
				constraintIDs = append(constraintIDs, stored.ID)
			}
			taskIDs := make([]string, 0, len(req.Tasks))
			for _, t := range req.Tasks {
				resp, err := client.Post(ctx, "/api/v1/tasks/", t)
				if err != nil {
					return fmt.Errorf("store task %s: %w", t.ID, err)
				}
				var stored model.Task
				if err := decodeData(resp, &stored); err != nil {
					return err
				}
				taskIDs = append(taskIDs, stored.ID)
			}
			fmt.Fprintf(w, "Stored %d tasks, %d resources, %d constraints\n",
				len(taskIDs), len(req.Resources), len(constraintIDs))
			if storeOnly {
				return nil
			}

			run := model.ScheduleRun{
				TimeRange:     req.TimeRange,
				Options:       req.Options,
				TaskIDs:       taskIDs,
				ConstraintIDs: constraintIDs,
			}
			if algorithm != "" {
				run.Options.Algorithm = model.Algorithm(algorithm)
			}
			resp, err := client.Post(ctx, "/api/v1/schedules/", run)
			if err != nil {
				return fmt.Errorf("create schedule: %w", err)
			}
			var sched model.Schedule
			if err := decodeData(resp, &sched); err != nil {
				return err
			}
			fmt.Fprintf(w, "Schedule created: %s\n", sched.ID)
			fmt.Fprintf(w, "  Scheduled:   %d\n", len(sched.Slots))
			fmt.Fprintf(w, "  Unscheduled: %d\n", len(sched.UnscheduledTasks))
			fmt.Fprintf(w, "  Score:       %.3f\n", sched.OptimizationScore)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Request file (YAML or JSON)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Override the algorithm (greedy, optimal, balanced, fast)")
	cmd.Flags().BoolVar(&storeOnly, "store-only", false, "Upload the inputs without computing a schedule")
	cmd.MarkFlagRequired("file")
	return cmd
}
