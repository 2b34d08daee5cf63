package cmd

import (
	"log"

	"ordertrack-backend/cmd/tracker-cli/utils"
	"ordertrack-backend/services/tracker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(employeesCmd)
}

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Lists the employees known to the accounting backend.",
	Run: func(cmd *cobra.Command, args []string) {
		var employees []tracker.Employee
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&employees).
			Get("/api/employees")
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon responded with %d", res.StatusCode())
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"ID", "Name", "Telegram"})
		for _, e := range employees {
			t.AppendRow(table.Row{e.ID, e.Name, e.Telegram})
		}
		t.Render()
	},
}
