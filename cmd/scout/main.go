package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/scout/internal/client"
	"github.com/groblegark/scout/internal/ui"
)

var (
	serverURL  string
	apiKeyFlag string
	jsonOutput bool

	apiClient *client.Client
)

func defaultServerURL() string {
	if s := os.Getenv("SCOUT_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:   "scout <command>",
	Short: "Family event scout: discover, approve, and book local events",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !ui.ShouldUseColor() || jsonOutput {
			ui.ForceNoColor()
		}
		apiClient = client.New(serverURL, apiKeyFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "scout server URL")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", os.Getenv("SCOUT_API_KEY"), "API key for the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "decisions", Title: "Decisions:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Events
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)

	// Decisions
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(calendarCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(shutdownCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
