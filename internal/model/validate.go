package model

import (
	"fmt"
	"strings"
)

// ValidationError reports missing required event fields. Validation failures
// are recoverable: the scorer surfaces the event with a zero total instead of
// dropping it.
type ValidationError struct {
	EventID string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event %s missing required fields: %s", e.EventID, strings.Join(e.Missing, ", "))
}

// Validate checks the fields the scorer requires. Returns nil when the event
// is scoreable.
func (e *Event) Validate() error {
	var missing []string
	if e.ID == "" {
		missing = append(missing, "id")
	}
	if e.Title == "" {
		missing = append(missing, "title")
	}
	if e.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return &ValidationError{EventID: e.ID, Missing: missing}
	}
	return nil
}
