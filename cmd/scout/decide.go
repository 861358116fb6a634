package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:     "approve <event-id>",
	Short:   "Approve an event awaiting a decision",
	GroupID: "decisions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.Approve(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp)
		} else {
			fmt.Printf("%s %s\n", resp.EventID, resp.Decision)
		}
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:     "reject <event-id>",
	Short:   "Reject an event awaiting a decision",
	GroupID: "decisions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.Reject(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp)
		} else {
			fmt.Printf("%s %s\n", resp.EventID, resp.Decision)
		}
		return nil
	},
}
