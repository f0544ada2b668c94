package cli

import (
	"fmt"

	"github.com/me/slotwise/internal/engine"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var file, output string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Re-check a schedule for overlaps and malformed slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			sched, err := loadSchedule(file)
			if err != nil {
				return err
			}
			report := engine.ValidateSchedule(sched)

			w := cmd.OutOrStdout()
			if output == outputJSON {
				if err := writeJSON(w, report); err != nil {
					return err
				}
			} else {
				renderReport(w, report)
			}
			if !report.IsValid {
				return fmt.Errorf("schedule %s has %d violations", sched.ID, len(report.Violations))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Schedule file (JSON or YAML)")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format (text, json)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newMetricsCmd() *cobra.Command {
	var file, output string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Summarise a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			sched, err := loadSchedule(file)
			if err != nil {
				return err
			}
			m := engine.ScheduleMetrics(sched)

			w := cmd.OutOrStdout()
			if output == outputJSON {
				return writeJSON(w, m)
			}
			renderMetrics(w, m)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Schedule file (JSON or YAML)")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format (text, json)")
	cmd.MarkFlagRequired("file")
	return cmd
}
