package cmd

import (
	"fmt"
	"log"

	"ordertrack-backend/services/tracker"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(backfillCmd)
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Re-extracts every order on the last seen page and submits them all.",
	Run: func(cmd *cobra.Command, args []string) {
		var result tracker.BackfillResult
		res, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&result).
			Post("/api/backfill")
		if err != nil {
			log.Fatal(err)
		}
		switch res.StatusCode() {
		case 409:
			log.Fatal("no page snapshot received yet, open the order history page first")
		case 422:
			log.Fatal("no order rows found on the last seen page")
		}
		if !res.IsSuccess() {
			log.Fatalf("daemon responded with %d", res.StatusCode())
		}

		fmt.Printf(
			"submitted %d of %d extracted orders (%d failed)\n",
			result.Submitted, result.Total, result.Failed,
		)
	},
}
