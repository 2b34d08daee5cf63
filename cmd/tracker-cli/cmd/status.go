package cmd

import (
	"log"

	"ordertrack-backend/cmd/tracker-cli/utils"
	"ordertrack-backend/services/tracker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the tracker daemon's current state.",
	Run: func(cmd *cobra.Command, args []string) {
		var status tracker.Status
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&status).
			Get("/api/status")
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon responded with %d", res.StatusCode())
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Tracking", "Employee set", "Snapshots", "Delivered", "Has snapshot"})
		t.AppendRow(table.Row{
			status.TrackingEnabled,
			status.EmployeeConfigured,
			status.SnapshotsSeen,
			status.DeliveredOrders,
			status.HasSnapshot,
		})
		t.Render()
	},
}
