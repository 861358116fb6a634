package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/groblegark/scout/internal/client"
	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printEventListTable(events []*model.Event, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSCORE\tDATE\tCOST\tTITLE")
	for _, e := range events {
		title := e.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		score := "-"
		if e.Score != nil {
			score = fmt.Sprintf("%.0f", e.Score.Total)
		}
		date := "-"
		if !e.Date.IsZero() {
			date = e.Date.Format("Jan 02 15:04")
		}
		cost := "free"
		if !e.Free() {
			cost = fmt.Sprintf("$%.2f", e.Cost)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			ui.RenderStatus(string(e.Status)),
			score,
			date,
			cost,
			title,
		)
	}
	w.Flush()
	fmt.Printf("\n%d events (%d total)\n", len(events), total)
}

func printEventDetail(d *client.EventDetail) {
	e := d.Event
	fmt.Printf("ID:          %s\n", e.ID)
	fmt.Printf("Title:       %s\n", e.Title)
	fmt.Printf("Status:      %s\n", ui.RenderStatus(string(e.Status)))
	if len(e.Sources) > 0 {
		fmt.Printf("Sources:     %s\n", strings.Join(e.Sources, ", "))
	}
	if !e.Date.IsZero() {
		fmt.Printf("Date:        %s\n", e.Date.Format("2006-01-02 15:04"))
	}
	if e.Location.Name != "" {
		loc := e.Location.Name
		if e.Location.Address != "" {
			loc += ", " + e.Location.Address
		}
		if e.Location.DistanceMiles > 0 {
			loc += fmt.Sprintf(" (%.1f mi)", e.Location.DistanceMiles)
		}
		fmt.Printf("Where:       %s\n", loc)
	}
	if e.Free() {
		fmt.Printf("Cost:        %s\n", ui.RenderGood("free"))
	} else {
		fmt.Printf("Cost:        %s\n", ui.RenderBad(fmt.Sprintf("$%.2f", e.Cost)))
	}
	if e.AgeRange.Min > 0 || e.AgeRange.Max > 0 {
		fmt.Printf("Ages:        %d-%d\n", e.AgeRange.Min, e.AgeRange.Max)
	}
	if e.Score != nil {
		fmt.Printf("Score:       %.0f/100", e.Score.Total)
		if e.Score.Reason != "" {
			fmt.Printf("  (%s)", ui.RenderMuted(e.Score.Reason))
		}
		fmt.Println()
	}
	if e.RegistrationURL != "" {
		fmt.Printf("Register:    %s\n", e.RegistrationURL)
	}
	if e.SpotsLeft > 0 {
		fmt.Printf("Spots left:  %d\n", e.SpotsLeft)
	}
	if e.Description != "" {
		fmt.Printf("Description: %s\n", e.Description)
	}

	if d.Approval != nil {
		fmt.Println()
		fmt.Println("Open approval request:")
		fmt.Printf("  %s via %s, sent %s, expires %s\n",
			d.Approval.ID, d.Approval.Channel,
			d.Approval.SentAt.Format("2006-01-02 15:04"),
			d.Approval.ExpiresAt.Format("2006-01-02 15:04"))
	}
	if d.Registration != nil {
		fmt.Println()
		fmt.Println("Registration:")
		r := d.Registration
		if r.Success {
			fmt.Printf("  %s", ui.RenderGood("booked"))
			if r.ConfirmationNumber != "" {
				fmt.Printf(", confirmation %s", r.ConfirmationNumber)
			}
			fmt.Println()
		} else {
			fmt.Printf("  %s: %s\n", ui.RenderBad("not booked"), r.ErrorMessage)
		}
		if r.PaymentRequired {
			amount := ""
			if r.PaymentAmount != nil {
				amount = fmt.Sprintf(" ($%.2f)", *r.PaymentAmount)
			}
			fmt.Printf("  payment required%s, register manually\n", amount)
		}
		if r.ScreenshotRef != "" {
			fmt.Printf("  evidence: %s\n", ui.RenderMuted(r.ScreenshotRef))
		}
	}
}
