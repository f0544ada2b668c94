package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/slotwise/pkg/model"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func checkOutput(format string) error {
	if format != outputText && format != outputJSON {
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, outputText, outputJSON)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderSchedule prints slots in start order with their offset into the range.
func renderSchedule(w io.Writer, s *model.Schedule) {
	fmt.Fprintf(w, "Schedule %s (%s, score %.3f)\n", s.ID, s.Metadata.Algorithm, s.OptimizationScore)
	total := len(s.Slots) + len(s.UnscheduledTasks)
	fmt.Fprintf(w, "Placed %s of %s tasks in %sms, %s optimizer iterations\n\n",
		humanize.Comma(int64(len(s.Slots))),
		humanize.Comma(int64(total)),
		humanize.Comma(s.Metadata.ComputationTimeMs),
		humanize.Comma(int64(s.Metadata.IterationsPerformed)))

	if len(s.Slots) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TASK\tSTART\tEND\tOFFSET\tRESOURCES\tSCORE\tNOTES")
		for _, slot := range s.Slots {
			offset := humanize.RelTime(s.StartDate, slot.Start, "into range", "before range")
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%d\n",
				slot.TaskID,
				slot.Start.Format(time.DateTime),
				slot.End.Format("15:04"),
				offset,
				strings.Join(slot.ResourceIDs, ","),
				slot.OptimizationScore,
				len(slot.ConstraintViolations))
		}
		tw.Flush()
	}
	if len(s.UnscheduledTasks) > 0 {
		fmt.Fprintf(w, "\nUnscheduled: %s\n", strings.Join(s.UnscheduledTasks, ", "))
	}
}

func renderReport(w io.Writer, r model.ValidationReport) {
	if r.IsValid {
		fmt.Fprintf(w, "Valid (score %.3f)\n", r.Score)
	} else {
		fmt.Fprintf(w, "Invalid (score %.3f)\n", r.Score)
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  [%s] %s: %s\n", v.Severity, v.Type, v.Description)
	}
}

func renderMetrics(w io.Writer, m model.ScheduleMetrics) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Algorithm:\t%s\n", m.Algorithm)
	fmt.Fprintf(tw, "Tasks:\t%s scheduled, %s unscheduled (%s total)\n",
		humanize.Comma(int64(m.ScheduledTasks)),
		humanize.Comma(int64(m.UnscheduledTasks)),
		humanize.Comma(int64(m.TotalTasks)))
	fmt.Fprintf(tw, "Completion:\t%.1f%%\n", m.CompletionRate*100)
	fmt.Fprintf(tw, "Booked time:\t%s\n", time.Duration(m.TotalDuration)*time.Minute)
	fmt.Fprintf(tw, "Utilization:\t%.1f%%\n", m.Utilization*100)
	fmt.Fprintf(tw, "Score:\t%.3f\n", m.OptimizationScore)
	fmt.Fprintf(tw, "Computation:\t%sms\n", humanize.Comma(m.ComputationTimeMs))
	tw.Flush()
}

func renderSlots(w io.Writer, slots []model.AvailableSlot, from time.Time) {
	if len(slots) == 0 {
		fmt.Fprintln(w, "No free slots found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTART\tEND\tOFFSET\tSCORE")
	for i, s := range slots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\n",
			humanize.Ordinal(i+1),
			s.Start.Format(time.DateTime),
			s.End.Format("15:04"),
			humanize.RelTime(from, s.Start, "into range", "before range"),
			s.Score)
	}
	tw.Flush()
}
