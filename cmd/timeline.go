package cmd

import (
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/spf13/cobra"
)

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	Short:   "Print the IPO schedule derived from an open date",
	Example: `  ipo-admin timeline --open-date 2024-01-05`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("open-date")
		open := services.NewUtilityService().ParseDate(raw)
		if open == nil {
			return fmt.Errorf("invalid --open-date %q", raw)
		}

		tl := services.DeriveTimeline(*open)
		out := cmd.OutOrStdout()
		for _, row := range []struct {
			label string
			date  time.Time
		}{
			{"Open", tl.Open},
			{"Close", tl.Close},
			{"Allotment", tl.Allotment},
			{"Refund", tl.Refund},
			{"Listing", tl.Listing},
		} {
			fmt.Fprintf(out, "%-10s %s\n", row.label, row.date.Format("Mon 02 Jan 2006"))
		}
		fmt.Fprintf(out, "%-10s %s\n", "Status", services.SuggestedStatus(tl, time.Now()))
		return nil
	},
}

func init() {
	timelineCmd.Flags().String("open-date", "", "subscription open date (YYYY-MM-DD)")
	_ = timelineCmd.MarkFlagRequired("open-date")
}
