package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var shutdownCmd = &cobra.Command{
	Use:     "shutdown",
	Short:   "Emergency stop: halt all automated flows until the server restarts",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, _ := cmd.Flags().GetString("actor")
		if err := apiClient.EmergencyShutdown(context.Background(), actor); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("pipeline halted; restart the server to resume")
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check server health",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.Health(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("status: %s\n", resp.Status)
		if resp.Halted {
			fmt.Println("pipeline: halted")
		}
		return nil
	},
}

func init() {
	shutdownCmd.Flags().String("actor", "cli", "who triggered the shutdown")
}
