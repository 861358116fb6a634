package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/store"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, sources, alternate_urls, title, description, date,
	venue_name, venue_address, distance_miles, age_min, age_max, cost,
	registration_url, registration_opens, spots_total, spots_left,
	rating, rating_count, recurring, score, status, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateEvent(ctx context.Context, db executor, e *model.Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (
			id, sources, alternate_urls, title, description, date,
			venue_name, venue_address, distance_miles, age_min, age_max, cost,
			registration_url, registration_opens, spots_total, spots_left,
			rating, rating_count, recurring, score, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23
		)`,
		e.ID,
		jsonbValue(e.Sources),
		jsonbValue(e.AlternateURLs),
		e.Title,
		nullString(e.Description),
		nullTime(e.Date),
		nullString(e.Location.Name),
		nullString(e.Location.Address),
		e.Location.DistanceMiles,
		e.AgeRange.Min,
		e.AgeRange.Max,
		e.Cost,
		nullString(e.RegistrationURL),
		nullTimePtr(e.RegistrationOpens),
		e.SpotsTotal,
		e.SpotsLeft,
		e.Rating,
		e.RatingCount,
		e.Recurring,
		jsonbValue(e.Score),
		string(e.Status),
		e.CreatedAt,
		e.UpdatedAt,
	)
	return err
}

func queryGetEvent(ctx context.Context, db executor, id string) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

func queryListEvents(ctx context.Context, db executor, filter model.EventFilter) ([]*model.Event, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.Source != "" {
		p := nextArg()
		whereClauses = append(whereClauses, "sources @> to_jsonb(ARRAY["+p+"])")
		args = append(args, filter.Source)
	}

	if filter.FreeOnly {
		whereClauses = append(whereClauses, "cost <= 0")
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(title ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + eventColumns + " FROM events" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	var total int
	for rows.Next() {
		e, t, err := scanEventWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan events: %w", err)
		}
		total = t
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan events: %w", err)
	}

	return events, total, nil
}

func queryGetEventsByStatus(ctx context.Context, db executor, status model.Status) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = $1 ORDER BY created_at ASC`,
		string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryUpdateEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		UPDATE events SET
			sources = $2,
			alternate_urls = $3,
			title = $4,
			description = $5,
			date = $6,
			venue_name = $7,
			venue_address = $8,
			distance_miles = $9,
			age_min = $10,
			age_max = $11,
			cost = $12,
			registration_url = $13,
			registration_opens = $14,
			spots_total = $15,
			spots_left = $16,
			rating = $17,
			rating_count = $18,
			recurring = $19,
			score = $20,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		e.ID,
		jsonbValue(e.Sources),
		jsonbValue(e.AlternateURLs),
		e.Title,
		nullString(e.Description),
		nullTime(e.Date),
		nullString(e.Location.Name),
		nullString(e.Location.Address),
		e.Location.DistanceMiles,
		e.AgeRange.Min,
		e.AgeRange.Max,
		e.Cost,
		nullString(e.RegistrationURL),
		nullTimePtr(e.RegistrationOpens),
		e.SpotsTotal,
		e.SpotsLeft,
		e.Rating,
		e.RatingCount,
		e.Recurring,
		jsonbValue(e.Score),
	).Scan(&e.UpdatedAt)
}

// queryUpdateEventStatus applies a lifecycle transition. Re-applying the
// current status is a no-op; an illegal move returns ErrIllegalTransition.
// The UPDATE is guarded on the observed status so a concurrent sweep cannot
// double-apply a transition.
func queryUpdateEventStatus(ctx context.Context, db executor, id string, status model.Status) error {
	var current model.Status
	err := db.QueryRowContext(ctx, `SELECT status FROM events WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	if current == status {
		return nil
	}
	if !model.CanTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", store.ErrIllegalTransition, current, status)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE events SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(current), string(status),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Lost a race. Idempotent if the winner applied the same status.
		var now model.Status
		if err := db.QueryRowContext(ctx, `SELECT status FROM events WHERE id = $1`, id).Scan(&now); err != nil {
			return err
		}
		if now == status {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", store.ErrIllegalTransition, now, status)
	}
	return nil
}

func querySaveEventScore(ctx context.Context, db executor, id string, score model.ScoreFactors) error {
	res, err := db.ExecContext(ctx, `
		UPDATE events SET score = $2, updated_at = NOW()
		WHERE id = $1`,
		id, jsonbValue(&score),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryFindEventBySource(ctx context.Context, db executor, source, title string) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE title = $2 AND sources @> to_jsonb(ARRAY[$1])
		LIMIT 1`,
		source, title,
	)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

const approvalColumns = `id, event_id, channel, recipient, sent_at, expires_at,
	reminders_sent, response, resolved`

func queryCreateApproval(ctx context.Context, db executor, r *model.ApprovalRequest) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO approvals (
			id, event_id, channel, recipient, sent_at, expires_at,
			reminders_sent, response, resolved
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID,
		r.EventID,
		string(r.Channel),
		r.Recipient,
		r.SentAt,
		r.ExpiresAt,
		r.RemindersSent,
		jsonbValue(r.Response),
		r.Resolved,
	)
	return err
}

func queryGetApproval(ctx context.Context, db executor, id string) (*model.ApprovalRequest, error) {
	row := db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id)
	r, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

// queryOpenApprovalForEvent returns the event's unresolved request, or nil
// when no request is open.
func queryOpenApprovalForEvent(ctx context.Context, db executor, eventID string) (*model.ApprovalRequest, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+approvalColumns+` FROM approvals
		WHERE event_id = $1 AND NOT resolved`,
		eventID,
	)
	r, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func queryListOpenApprovals(ctx context.Context, db executor) ([]*model.ApprovalRequest, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+approvalColumns+` FROM approvals
		WHERE NOT resolved
		ORDER BY sent_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApprovals(rows)
}

func queryResolveApproval(ctx context.Context, db executor, id string, resp *model.ApprovalResponse) error {
	res, err := db.ExecContext(ctx, `
		UPDATE approvals SET response = $2, resolved = TRUE
		WHERE id = $1 AND NOT resolved`,
		id, jsonbValue(resp),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// queryExpireApproval resolves a request with no response. The resolved
// guard makes a concurrent double-expiry affect zero rows.
func queryExpireApproval(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE approvals SET resolved = TRUE
		WHERE id = $1 AND NOT resolved`,
		id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryMarkApprovalReminded(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE approvals SET reminders_sent = reminders_sent + 1
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// querySaveRegistrationResult upserts the event's single attempt record. A
// successful record is never overwritten; a retry replaces only failures.
func querySaveRegistrationResult(ctx context.Context, db executor, r *model.RegistrationResult) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO registrations (
			event_id, attempt_id, success, confirmation_number, error_message,
			screenshot_ref, payment_required, payment_amount, attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO UPDATE SET
			attempt_id = EXCLUDED.attempt_id,
			success = EXCLUDED.success,
			confirmation_number = EXCLUDED.confirmation_number,
			error_message = EXCLUDED.error_message,
			screenshot_ref = EXCLUDED.screenshot_ref,
			payment_required = EXCLUDED.payment_required,
			payment_amount = EXCLUDED.payment_amount,
			attempted_at = EXCLUDED.attempted_at
		WHERE NOT registrations.success`,
		r.EventID,
		r.AttemptID,
		r.Success,
		nullString(r.ConfirmationNumber),
		nullString(r.ErrorMessage),
		nullString(r.ScreenshotRef),
		r.PaymentRequired,
		nullFloatPtr(r.PaymentAmount),
		r.AttemptedAt,
	)
	return err
}

func queryGetRegistrationResult(ctx context.Context, db executor, eventID string) (*model.RegistrationResult, error) {
	row := db.QueryRowContext(ctx, `
		SELECT event_id, attempt_id, success, confirmation_number, error_message,
			screenshot_ref, payment_required, payment_amount, attempted_at
		FROM registrations WHERE event_id = $1`,
		eventID,
	)
	r, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

func parseSortClause(sort string) string {
	if sort == "" {
		return "created_at DESC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"created_at": true, "updated_at": true, "date": true,
		"title": true, "status": true, "cost": true,
	}
	switch {
	case col == "score":
		col = "(score->>'total')::float"
	case !allowed[col]:
		return "created_at DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
