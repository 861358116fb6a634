package model

import "time"

// RegistrationResult is the outcome of one automated registration attempt.
// Written at most once per attempt; a failed attempt is retried only by an
// explicit operator action, never automatically.
type RegistrationResult struct {
	AttemptID          string    `json:"attempt_id"`
	EventID            string    `json:"event_id"`
	Success            bool      `json:"success"`
	ConfirmationNumber string    `json:"confirmation_number,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	ScreenshotRef      string    `json:"screenshot_ref,omitempty"`
	PaymentRequired    bool      `json:"payment_required"`
	PaymentAmount      *float64  `json:"payment_amount,omitempty"`
	AttemptedAt        time.Time `json:"attempted_at"`
}
