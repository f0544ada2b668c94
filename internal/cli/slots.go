package cli

import (
	"fmt"
	"slices"

	"github.com/me/slotwise/pkg/model"
	"github.com/spf13/cobra"
)

func newSlotsCmd() *cobra.Command {
	var (
		file      string
		duration  int
		count     int
		resources []string
		output    string
		ef        engineFlags
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Find free slots for a set of resources",
		Long: `Reads resources, constraints and time_range from a request file and lists
the best free windows of the given duration. Tasks in the file are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			req, err := loadRequest(file)
			if err != nil {
				return err
			}
			selected, err := pickResources(req.Resources, resources)
			if err != nil {
				return err
			}

			slots, err := ef.engine().FindAvailableSlots(selected, duration, req.Constraints, req.TimeRange, count)
			if err != nil {
				return fmt.Errorf("find slots: %w", err)
			}

			w := cmd.OutOrStdout()
			if output == outputJSON {
				if slots == nil {
					slots = []model.AvailableSlot{}
				}
				return writeJSON(w, slots)
			}
			renderSlots(w, slots, req.TimeRange.Start)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Request file (YAML or JSON)")
	cmd.Flags().IntVar(&duration, "duration", 60, "Slot length in minutes")
	cmd.Flags().IntVar(&count, "count", 10, "Maximum number of slots")
	cmd.Flags().StringSliceVar(&resources, "resource", nil, "Resource ID to book (repeatable; default all in the file)")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format (text, json)")
	ef.register(cmd)
	cmd.MarkFlagRequired("file")
	return cmd
}

// pickResources returns the named resources, or all of them when ids is empty.
func pickResources(all []model.Resource, ids []string) ([]model.Resource, error) {
	if len(ids) == 0 {
		return all, nil
	}
	out := make([]model.Resource, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(all, func(r model.Resource) bool { return r.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("resource %q is not in the request file", id)
		}
		out = append(out, all[i])
	}
	return out, nil
}
