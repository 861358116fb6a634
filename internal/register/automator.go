// Package register drives the safety-guarded automated registration flow for
// approved, zero-cost events.
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groblegark/scout/internal/events"
	"github.com/groblegark/scout/internal/evidence"
	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/profile"
	"github.com/groblegark/scout/internal/store"
)

// settleWait is the brief pause after submitting before inspecting the
// resulting page.
const settleWait = 3 * time.Second

// successCues mark a post-submission page as a confirmed registration.
var successCues = []string{
	"thank you", "confirmed", "confirmation", "you're registered",
	"you are registered", "registration complete", "success", "see you there",
}

// confirmationPattern extracts a confirmation code from the result page.
var confirmationPattern = regexp.MustCompile(`(?i)(?:confirmation|reference|booking)\s*(?:number|code|#|:)?\s*#?\s*([A-Z0-9][A-Z0-9-]{4,})`)

// Automator completes registration forms for approved free events. Every
// terminal outcome is screenshot-logged and persisted exactly once; retries
// are a distinct operator-triggered action.
type Automator struct {
	store     store.Store
	browser   Browser
	evidence  evidence.Store
	publisher events.Publisher
	family    profile.Family
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an Automator.
func New(s store.Store, b Browser, ev evidence.Store, pub events.Publisher, fam profile.Family, logger *slog.Logger) *Automator {
	return &Automator{
		store:     s,
		browser:   b,
		evidence:  ev,
		publisher: pub,
		family:    fam,
		logger:    logger,
		now:       time.Now,
	}
}

// Register runs one automated registration attempt. A recorded success makes
// later calls no-ops returning the existing result. Safety violations return
// ErrSafetyViolation alongside the persisted result.
func (a *Automator) Register(ctx context.Context, event *model.Event) (*model.RegistrationResult, error) {
	if existing, err := a.store.GetRegistrationResult(ctx, event.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing result: %w", err)
	} else if existing != nil && existing.Success {
		// Never duplicate a successful submission.
		return existing, nil
	}

	// First line of defense: the listed cost. Checked before any navigation,
	// so a paid event never touches the browser. The event stays approved;
	// the human may still register and pay manually.
	if v := CheckListedCost(event); v != nil {
		result := a.newResult(event.ID)
		result.PaymentRequired = true
		result.PaymentAmount = v.Amount
		result.ErrorMessage = v.Reason
		return a.finish(ctx, event, result, "", ErrSafetyViolation)
	}

	if event.RegistrationURL == "" {
		result := a.newResult(event.ID)
		result.ErrorMessage = "event has no registration URL"
		return a.finish(ctx, event, result, "", nil)
	}

	if err := a.store.UpdateEventStatus(ctx, event.ID, model.StatusRegistering); err != nil {
		return nil, fmt.Errorf("mark registering: %w", err)
	}

	result := a.newResult(event.ID)
	err := a.attempt(ctx, event, result)
	return a.finish(ctx, event, result, model.StatusFailed, err)
}

// attempt drives the browser for one registration. The page is acquired once
// and released on every exit path, including panics.
func (a *Automator) attempt(ctx context.Context, event *model.Event, result *model.RegistrationResult) (err error) {
	page, release, acquireErr := a.browser.AcquirePage(ctx)
	if acquireErr != nil {
		result.ErrorMessage = acquireErr.Error()
		return nil
	}
	defer release()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("registration attempt panicked", "event_id", event.ID, "panic", r)
			result.Success = false
			result.ErrorMessage = fmt.Sprintf("attempt panicked: %v", r)
			err = nil
		}
	}()

	if navErr := page.Navigate(ctx, event.RegistrationURL); navErr != nil {
		result.ErrorMessage = fmt.Sprintf("navigate: %v", navErr)
		return nil
	}
	a.snapshot(ctx, page, result, "initial")

	pageHTML, htmlErr := page.HTML(ctx)
	if htmlErr != nil {
		result.ErrorMessage = fmt.Sprintf("read page: %v", htmlErr)
		return nil
	}

	// Second line of defense: the live page. The listed cost can be wrong or
	// stale, so this check is independent and the attempt aborts before any
	// form interaction.
	if v := ScanPage(pageHTML); v != nil {
		result.PaymentRequired = true
		result.PaymentAmount = v.Amount
		result.ErrorMessage = v.Reason
		a.snapshot(ctx, page, result, "violation")
		return ErrSafetyViolation
	}

	form, formErr := findRegistrationForm(pageHTML)
	if formErr != nil {
		result.ErrorMessage = formErr.Error()
		return nil
	}
	if form == nil {
		result.ErrorMessage = "no registration form found on page"
		return nil
	}

	for _, field := range form.Fields {
		value := a.valueFor(field.Kind, event)
		if value == "" {
			continue
		}
		if fillErr := page.Fill(ctx, field.Selector, value); fillErr != nil {
			a.logger.Warn("failed to fill field", "selector", field.Selector, "err", fillErr)
		}
	}

	if clickErr := page.Click(ctx, form.SubmitSelector); clickErr != nil {
		result.ErrorMessage = fmt.Sprintf("submit: %v", clickErr)
		return nil
	}
	_ = page.WaitSettled(ctx, settleWait)
	a.snapshot(ctx, page, result, "result")

	resultHTML, resErr := page.HTML(ctx)
	if resErr != nil {
		result.ErrorMessage = fmt.Sprintf("read result page: %v", resErr)
		return nil
	}

	lower := strings.ToLower(resultHTML)
	if !matchesAny(lower, successCues) {
		result.ErrorMessage = "no success indicator found after submission"
		return nil
	}

	result.Success = true
	if m := confirmationPattern.FindStringSubmatch(resultHTML); m != nil {
		result.ConfirmationNumber = m[1]
	}
	return nil
}

// finish persists the result exactly once, applies the terminal status, and
// publishes the outcome. An empty terminal status means the attempt was
// refused pre-flight and the event keeps its current status.
func (a *Automator) finish(ctx context.Context, event *model.Event, result *model.RegistrationResult, terminal model.Status, attemptErr error) (*model.RegistrationResult, error) {
	if err := a.store.SaveRegistrationResult(ctx, result); err != nil {
		return nil, fmt.Errorf("save registration result: %w", err)
	}

	if result.Success {
		terminal = model.StatusBooked
	}
	if terminal != "" {
		if err := a.store.UpdateEventStatus(ctx, event.ID, terminal); err != nil {
			a.logger.Error("failed to apply terminal status", "event_id", event.ID, "status", terminal, "err", err)
		}
	}

	switch {
	case result.Success:
		a.publish(ctx, events.TopicRegistrationBooked, events.RegistrationBooked{Result: result})
		a.logger.Info("registration booked", "event_id", event.ID, "confirmation", result.ConfirmationNumber)
	case result.PaymentRequired:
		a.publish(ctx, events.TopicRegistrationBlocked, events.RegistrationBlocked{Result: result, Reason: result.ErrorMessage})
		a.logger.Warn("registration blocked by payment guard", "event_id", event.ID, "reason", result.ErrorMessage)
	default:
		a.publish(ctx, events.TopicRegistrationFailed, events.RegistrationFailed{Result: result})
		a.logger.Warn("registration failed", "event_id", event.ID, "reason", result.ErrorMessage)
	}
	return result, attemptErr
}

func (a *Automator) newResult(eventID string) *model.RegistrationResult {
	return &model.RegistrationResult{
		AttemptID:   uuid.NewString(),
		EventID:     eventID,
		AttemptedAt: a.now().UTC(),
	}
}

// snapshot captures and stores a screenshot, recording the reference on the
// result. Screenshot failures are logged, never fatal.
func (a *Automator) snapshot(ctx context.Context, page Page, result *model.RegistrationResult, label string) {
	png, err := page.Screenshot(ctx)
	if err != nil {
		a.logger.Warn("screenshot failed", "event_id", result.EventID, "label", label, "err", err)
		return
	}
	ref, err := a.evidence.Save(ctx, result.EventID, label, png)
	if err != nil {
		a.logger.Warn("evidence save failed", "event_id", result.EventID, "label", label, "err", err)
		return
	}
	result.ScreenshotRef = ref
}

func (a *Automator) valueFor(kind fieldKind, event *model.Event) string {
	switch kind {
	case fieldName:
		return a.family.ParentName
	case fieldEmail:
		return a.family.Email
	case fieldPhone:
		return a.family.Phone
	case fieldChildCount:
		return strconv.Itoa(len(a.family.Children))
	case fieldChildAge:
		for _, c := range a.family.Children {
			if event.AgeRange.Overlaps(c.Age) {
				return strconv.Itoa(c.Age)
			}
		}
		if len(a.family.Children) > 0 {
			return strconv.Itoa(a.family.Children[0].Age)
		}
	}
	return ""
}

func (a *Automator) publish(ctx context.Context, topic string, event any) {
	if err := a.publisher.Publish(ctx, topic, event); err != nil {
		a.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}
