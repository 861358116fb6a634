package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/groblegark/scout/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.Event, error) {
	e, _, err := scanEventInner(row, false)
	return e, err
}

// scanEventWithTotal scans a row that has a leading total_count column
// followed by the standard event columns. Used by queryListEvents with
// COUNT(*) OVER().
func scanEventWithTotal(row scannable) (*model.Event, int, error) {
	return scanEventInner(row, true)
}

func scanEventInner(row scannable, withTotal bool) (*model.Event, int, error) {
	var e model.Event
	var (
		total             int
		sources           []byte
		alternateURLs     []byte
		description       sql.NullString
		date              sql.NullTime
		venueName         sql.NullString
		venueAddress      sql.NullString
		registrationURL   sql.NullString
		registrationOpens sql.NullTime
		score             []byte
	)

	dest := []any{
		&e.ID,
		&sources,
		&alternateURLs,
		&e.Title,
		&description,
		&date,
		&venueName,
		&venueAddress,
		&e.Location.DistanceMiles,
		&e.AgeRange.Min,
		&e.AgeRange.Max,
		&e.Cost,
		&registrationURL,
		&registrationOpens,
		&e.SpotsTotal,
		&e.SpotsLeft,
		&e.Rating,
		&e.RatingCount,
		&e.Recurring,
		&score,
		&e.Status,
		&e.CreatedAt,
		&e.UpdatedAt,
	}
	if withTotal {
		dest = append([]any{&total}, dest...)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}

	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &e.Sources); err != nil {
			return nil, 0, err
		}
	}
	if len(alternateURLs) > 0 {
		if err := json.Unmarshal(alternateURLs, &e.AlternateURLs); err != nil {
			return nil, 0, err
		}
	}
	if len(score) > 0 {
		var f model.ScoreFactors
		if err := json.Unmarshal(score, &f); err != nil {
			return nil, 0, err
		}
		e.Score = &f
	}

	e.Description = description.String
	e.Location.Name = venueName.String
	e.Location.Address = venueAddress.String
	e.RegistrationURL = registrationURL.String
	if date.Valid {
		e.Date = date.Time
	}
	if registrationOpens.Valid {
		t := registrationOpens.Time
		e.RegistrationOpens = &t
	}

	return &e, total, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// scanApproval scans a single row into a model.ApprovalRequest.
func scanApproval(row scannable) (*model.ApprovalRequest, error) {
	var r model.ApprovalRequest
	var response []byte
	err := row.Scan(
		&r.ID,
		&r.EventID,
		&r.Channel,
		&r.Recipient,
		&r.SentAt,
		&r.ExpiresAt,
		&r.RemindersSent,
		&response,
		&r.Resolved,
	)
	if err != nil {
		return nil, err
	}
	if len(response) > 0 {
		var resp model.ApprovalResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return nil, err
		}
		r.Response = &resp
	}
	return &r, nil
}

// scanApprovals scans multiple rows into a slice of model.ApprovalRequest pointers.
func scanApprovals(rows *sql.Rows) ([]*model.ApprovalRequest, error) {
	var approvals []*model.ApprovalRequest
	for rows.Next() {
		r, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return approvals, nil
}

// scanRegistration scans a single row into a model.RegistrationResult.
func scanRegistration(row scannable) (*model.RegistrationResult, error) {
	var r model.RegistrationResult
	var (
		confirmation  sql.NullString
		errorMessage  sql.NullString
		screenshotRef sql.NullString
		paymentAmount sql.NullFloat64
	)
	err := row.Scan(
		&r.EventID,
		&r.AttemptID,
		&r.Success,
		&confirmation,
		&errorMessage,
		&screenshotRef,
		&r.PaymentRequired,
		&paymentAmount,
		&r.AttemptedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ConfirmationNumber = confirmation.String
	r.ErrorMessage = errorMessage.String
	r.ScreenshotRef = screenshotRef.String
	if paymentAmount.Valid {
		v := paymentAmount.Float64
		r.PaymentAmount = &v
	}
	return &r, nil
}

// nullTime converts a time.Time to sql.NullTime; the zero time is null.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullFloatPtr converts a *float64 to sql.NullFloat64.
func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// jsonbValue marshals a value for a JSONB column. Nil pointers and nil
// slices become SQL NULL, except string slices which become empty arrays.
func jsonbValue(v any) []byte {
	switch x := v.(type) {
	case nil:
		return nil
	case []string:
		if x == nil {
			return []byte("[]")
		}
	case *model.ScoreFactors:
		if x == nil {
			return nil
		}
	case *model.ApprovalResponse:
		if x == nil {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
