package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorMuted   = 245 // medium gray
	colorGood    = 107 // green
	colorBad     = 167 // red
	colorPending = 179 // yellow
)

var noColor bool

// statusColors maps event lifecycle states to their display color.
var statusColors = map[string]int{
	"discovered":        colorMuted,
	"deduplicated":      colorMuted,
	"scored":            colorAccent,
	"pending_approval":  colorPending,
	"approved":          colorGood,
	"rejected":          colorBad,
	"expired":           colorMuted,
	"registering":       colorPending,
	"booked":            colorGood,
	"failed":            colorBad,
	"payment_confirmed": colorGood,
}

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderStatus returns the status colored by its lifecycle meaning.
func RenderStatus(status string) string {
	if code, ok := statusColors[status]; ok {
		return render(code, status)
	}
	return status
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderGood returns s in green.
func RenderGood(s string) string { return render(colorGood, s) }

// RenderBad returns s in red.
func RenderBad(s string) string { return render(colorBad, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
