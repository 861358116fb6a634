package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/scout/internal/ui"
)

var registerCmd = &cobra.Command{
	Use:     "register <event-id>",
	Short:   "Trigger a registration attempt for an approved free event",
	GroupID: "decisions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.Register(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(resp)
			return nil
		}
		r := resp.Registration
		if r == nil {
			fmt.Println("no result")
			os.Exit(1)
		}
		switch {
		case r.Success:
			msg := ui.RenderGood("booked")
			if r.ConfirmationNumber != "" {
				msg += ", confirmation " + r.ConfirmationNumber
			}
			fmt.Println(msg)
		case r.PaymentRequired:
			fmt.Printf("%s: %s\n", ui.RenderBad("payment required"), r.ErrorMessage)
			os.Exit(1)
		default:
			fmt.Printf("%s: %s\n", ui.RenderBad("failed"), r.ErrorMessage)
			os.Exit(1)
		}
		return nil
	},
}

var calendarCmd = &cobra.Command{
	Use:     "calendar <event-id>",
	Short:   "Check an event against the family calendar",
	GroupID: "decisions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.CheckCalendar(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(resp)
			return nil
		}
		if resp.Clear || resp.Conflict == nil {
			fmt.Println(ui.RenderGood("no conflicts"))
			return nil
		}
		c := resp.Conflict
		fmt.Printf("%s %s: %s - %s\n", ui.RenderBad("conflict"), c.Title,
			c.Start.Format("Jan 02 15:04"), c.End.Format("15:04"))
		os.Exit(1)
		return nil
	},
}
