package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/scout/internal/client"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List events",
	GroupID: "events",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetStringSlice("status")
		source, _ := cmd.Flags().GetString("source")
		freeOnly, _ := cmd.Flags().GetBool("free")
		search, _ := cmd.Flags().GetString("search")
		sortBy, _ := cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		resp, err := apiClient.ListEvents(context.Background(), &client.ListEventsRequest{
			Status:   status,
			Source:   source,
			FreeOnly: freeOnly,
			Search:   search,
			Sort:     sortBy,
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(resp.Events)
		} else {
			printEventListTable(resp.Events, resp.Total)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringSliceP("status", "s", nil, "filter by status (repeatable)")
	listCmd.Flags().String("source", "", "filter by discovery source")
	listCmd.Flags().Bool("free", false, "only zero-cost events")
	listCmd.Flags().String("search", "", "search title and description")
	listCmd.Flags().String("sort", "", "sort column, prefix with - for descending (e.g. -score)")
	listCmd.Flags().Int("limit", 20, "maximum number of events to return")
	listCmd.Flags().Int("offset", 0, "offset for pagination")
}
