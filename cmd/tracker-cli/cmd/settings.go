package cmd

import (
	"fmt"
	"log"

	"ordertrack-backend/cmd/tracker-cli/utils"
	"ordertrack-backend/services/tracker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	setCmd.Flags().String("endpoint", "", "accounting backend url")
	setCmd.Flags().String("employee", "", "employee id attributed to extracted orders")
	setCmd.Flags().String("account", "", "account label attributed to extracted orders")
	setCmd.Flags().Bool("enable", false, "enable tracking")
	setCmd.Flags().Bool("disable", false, "disable tracking")

	settingsCmd.AddCommand(getCmd)
	settingsCmd.AddCommand(setCmd)
	rootCmd.AddCommand(settingsCmd)
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Reads or updates the tracker settings.",
}

func printSettings(settings tracker.Settings) {
	t := utils.NewTable()
	t.AppendHeader(table.Row{"Endpoint", "Employee", "Account", "Tracking"})
	t.AppendRow(table.Row{
		settings.Endpoint,
		settings.EmployeeID,
		settings.AccountLabel,
		settings.TrackingEnabled,
	})
	t.Render()
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Prints the current tracker settings.",
	Run: func(cmd *cobra.Command, args []string) {
		var settings tracker.Settings
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&settings).
			Get("/api/settings")
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon responded with %d", res.StatusCode())
		}
		printSettings(settings)
	},
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Updates tracker settings, unset flags keep their current value.",
	Run: func(cmd *cobra.Command, args []string) {
		var settings tracker.Settings
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&settings).
			Get("/api/settings")
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon responded with %d", res.StatusCode())
		}

		if cmd.Flags().Changed("endpoint") {
			settings.Endpoint, _ = cmd.Flags().GetString("endpoint")
		}
		if cmd.Flags().Changed("employee") {
			settings.EmployeeID, _ = cmd.Flags().GetString("employee")
		}
		if cmd.Flags().Changed("account") {
			settings.AccountLabel, _ = cmd.Flags().GetString("account")
		}
		if cmd.Flags().Changed("enable") {
			settings.TrackingEnabled = true
		}
		if cmd.Flags().Changed("disable") {
			settings.TrackingEnabled = false
		}

		res, err = client.R().
			SetContext(cmd.Context()).
			SetBody(settings).
			SetResult(&settings).
			Put("/api/settings")
		if err != nil {
			log.Fatal(err)
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon responded with %d", res.StatusCode())
		}

		fmt.Println("settings saved")
		printSettings(settings)
	},
}
