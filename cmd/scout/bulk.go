package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/scout/internal/ui"
)

var bulkCmd = &cobra.Command{
	Use:     "bulk <approve|reject> <event-id>...",
	Short:   "Apply one decision to several events",
	GroupID: "decisions",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := args[0]
		if action != "approve" && action != "reject" {
			fmt.Fprintf(os.Stderr, "Error: action must be approve or reject, got %q\n", action)
			os.Exit(1)
		}

		results, err := apiClient.BulkAction(context.Background(), action, args[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(results)
			return nil
		}
		failed := 0
		for _, r := range results {
			if r.Success {
				fmt.Printf("%s %s\n", r.EventID, ui.RenderGood("ok"))
			} else {
				failed++
				fmt.Printf("%s %s: %s\n", r.EventID, ui.RenderBad("failed"), r.Error)
			}
		}
		if failed > 0 {
			os.Exit(1)
		}
		return nil
	},
}
