package model

// EventFilter selects events for listing on the control surface.
type EventFilter struct {
	Status   []Status
	Source   string
	FreeOnly bool
	Search   string
	Sort     string
	Limit    int
	Offset   int
}
