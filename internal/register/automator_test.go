package register

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/groblegark/scout/internal/events"
	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/profile"
	"github.com/groblegark/scout/internal/store"
)

// fakePage records every browser interaction so tests can assert which steps
// ran and which were never reached.
type fakePage struct {
	html      string
	afterHTML string

	navigated []string
	fills     map[string]string
	clicks    []string

	navErr    error
	htmlPanic bool
	submitted bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *fakePage) HTML(context.Context) (string, error) {
	if p.htmlPanic {
		panic("tab crashed")
	}
	if p.submitted {
		return p.afterHTML, nil
	}
	return p.html, nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (p *fakePage) Fill(_ context.Context, selector, value string) error {
	if p.fills == nil {
		p.fills = map[string]string{}
	}
	p.fills[selector] = value
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.clicks = append(p.clicks, selector)
	p.submitted = true
	return nil
}

func (p *fakePage) WaitSettled(context.Context, time.Duration) error { return nil }

type fakeBrowser struct {
	page     *fakePage
	acquired int
	released int
}

func (b *fakeBrowser) AcquirePage(context.Context) (Page, func(), error) {
	b.acquired++
	return b.page, func() { b.released++ }, nil
}

func (b *fakeBrowser) Close() error { return nil }

type fakeEvidence struct {
	saved []string
}

func (e *fakeEvidence) Save(_ context.Context, eventID, label string, _ []byte) (string, error) {
	e.saved = append(e.saved, label)
	return "mem://" + eventID + "/" + label, nil
}

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// fakeStore implements the slice of store.Store the automator touches.
type fakeStore struct {
	store.Store

	results  map[string]*model.RegistrationResult
	statuses []model.Status
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{results: map[string]*model.RegistrationResult{}}
}

func (s *fakeStore) GetRegistrationResult(_ context.Context, eventID string) (*model.RegistrationResult, error) {
	if r, ok := s.results[eventID]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) SaveRegistrationResult(_ context.Context, result *model.RegistrationResult) error {
	s.saves++
	s.results[result.EventID] = result
	return nil
}

func (s *fakeStore) UpdateEventStatus(_ context.Context, _ string, status model.Status) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func testFamily() profile.Family {
	return profile.Family{
		ParentName: "Dana Rivers",
		Email:      "dana@example.com",
		Phone:      "555-0100",
		Children:   []profile.Child{{Name: "Ada", Age: 6}},
	}
}

func newTestAutomator(s store.Store, b Browser, ev *fakeEvidence, pub events.Publisher) *Automator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, b, ev, pub, testFamily(), logger)
}

const registrationPage = `<html><body>
	<h1>Storytime Science for Kids</h1>
	<form action="/register" method="post">
		<input name="parent_name">
		<input type="email" name="email">
		<button type="submit" id="submit-btn">Register</button>
	</form>
</body></html>`

func TestRegisterRefusesListedCostBeforeNavigation(t *testing.T) {
	s := newFakeStore()
	browser := &fakeBrowser{page: &fakePage{html: registrationPage}}
	pub := &recordingPublisher{}
	a := newTestAutomator(s, browser, &fakeEvidence{}, pub)

	event := &model.Event{ID: "ev-paid", Status: model.StatusApproved, Cost: 15, RegistrationURL: "https://example.com/reg"}
	result, err := a.Register(context.Background(), event)
	if !errors.Is(err, ErrSafetyViolation) {
		t.Fatalf("err = %v, want ErrSafetyViolation", err)
	}
	if !result.PaymentRequired {
		t.Error("result should flag payment required")
	}
	if result.PaymentAmount == nil || *result.PaymentAmount != 15 {
		t.Errorf("payment amount = %v, want 15", result.PaymentAmount)
	}
	if browser.acquired != 0 {
		t.Error("paid event must never touch the browser")
	}
	if len(s.statuses) != 0 {
		t.Errorf("event status changed to %v; pre-flight refusal must leave it alone", s.statuses)
	}
	if s.saves != 1 {
		t.Errorf("saves = %d, want 1", s.saves)
	}
	if len(pub.topics) != 1 || pub.topics[0] != events.TopicRegistrationBlocked {
		t.Errorf("published %v, want [%s]", pub.topics, events.TopicRegistrationBlocked)
	}
}

func TestRegisterLivePaymentScanAbortsBeforeFilling(t *testing.T) {
	s := newFakeStore()
	page := &fakePage{html: `<html><body>
		<form>
			<input name="parent_name">
			<input name="card_number">
		</form>
	</body></html>`}
	browser := &fakeBrowser{page: page}
	pub := &recordingPublisher{}
	a := newTestAutomator(s, browser, &fakeEvidence{}, pub)

	event := &model.Event{ID: "ev-sneaky", Status: model.StatusApproved, Cost: 0, RegistrationURL: "https://example.com/reg"}
	result, err := a.Register(context.Background(), event)
	if !errors.Is(err, ErrSafetyViolation) {
		t.Fatalf("err = %v, want ErrSafetyViolation", err)
	}
	if !result.PaymentRequired {
		t.Error("result should flag payment required")
	}
	if len(page.fills) != 0 {
		t.Errorf("fields were filled (%v); the scan must abort first", page.fills)
	}
	if len(page.clicks) != 0 {
		t.Errorf("submit was clicked (%v); the scan must abort first", page.clicks)
	}
	if browser.released != 1 {
		t.Errorf("released = %d, want 1", browser.released)
	}
	want := []model.Status{model.StatusRegistering, model.StatusFailed}
	if len(s.statuses) != 2 || s.statuses[0] != want[0] || s.statuses[1] != want[1] {
		t.Errorf("statuses = %v, want %v", s.statuses, want)
	}
}

func TestRegisterSuccess(t *testing.T) {
	s := newFakeStore()
	page := &fakePage{
		html:      registrationPage,
		afterHTML: `<html><body><p>Thank you! Your spot is confirmed. Confirmation #SC-48213</p></body></html>`,
	}
	browser := &fakeBrowser{page: page}
	pub := &recordingPublisher{}
	ev := &fakeEvidence{}
	a := newTestAutomator(s, browser, ev, pub)

	event := &model.Event{ID: "ev-free", Status: model.StatusApproved, RegistrationURL: "https://example.com/reg"}
	result, err := a.Register(context.Background(), event)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !result.Success {
		t.Fatalf("result not successful: %s", result.ErrorMessage)
	}
	if result.ConfirmationNumber != "SC-48213" {
		t.Errorf("confirmation = %q, want SC-48213", result.ConfirmationNumber)
	}
	if got := page.fills[`input[name="parent_name"]`]; got != "Dana Rivers" {
		t.Errorf("parent name fill = %q", got)
	}
	if got := page.fills[`input[name="email"]`]; got != "dana@example.com" {
		t.Errorf("email fill = %q", got)
	}
	if len(page.clicks) != 1 || page.clicks[0] != "#submit-btn" {
		t.Errorf("clicks = %v, want [#submit-btn]", page.clicks)
	}
	if n := len(s.statuses); n == 0 || s.statuses[n-1] != model.StatusBooked {
		t.Errorf("statuses = %v, want final booked", s.statuses)
	}
	if len(pub.topics) != 1 || pub.topics[0] != events.TopicRegistrationBooked {
		t.Errorf("published %v", pub.topics)
	}
	if result.ScreenshotRef == "" {
		t.Error("screenshot reference not recorded")
	}
	if browser.released != 1 {
		t.Errorf("released = %d, want 1", browser.released)
	}
}

func TestRegisterIdempotentAfterSuccess(t *testing.T) {
	s := newFakeStore()
	existing := &model.RegistrationResult{
		AttemptID:          "attempt-1",
		EventID:            "ev-done",
		Success:            true,
		ConfirmationNumber: "SC-1",
	}
	s.results["ev-done"] = existing
	browser := &fakeBrowser{page: &fakePage{html: registrationPage}}
	a := newTestAutomator(s, browser, &fakeEvidence{}, &recordingPublisher{})

	event := &model.Event{ID: "ev-done", Status: model.StatusBooked, RegistrationURL: "https://example.com/reg"}
	result, err := a.Register(context.Background(), event)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result != existing {
		t.Error("expected the recorded result to be returned unchanged")
	}
	if browser.acquired != 0 {
		t.Error("no browser work after a recorded success")
	}
	if s.saves != 0 {
		t.Errorf("saves = %d, want 0", s.saves)
	}
}

func TestRegisterNavigateFailureReleasesPage(t *testing.T) {
	s := newFakeStore()
	page := &fakePage{navErr: errors.New("dns failure")}
	browser := &fakeBrowser{page: page}
	pub := &recordingPublisher{}
	a := newTestAutomator(s, browser, &fakeEvidence{}, pub)

	event := &model.Event{ID: "ev-nav", Status: model.StatusApproved, RegistrationURL: "https://example.com/reg"}
	result, err := a.Register(context.Background(), event)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Success {
		t.Error("navigation failure must not succeed")
	}
	if !strings.Contains(result.ErrorMessage, "dns failure") {
		t.Errorf("error message = %q", result.ErrorMessage)
	}
	if browser.released != 1 {
		t.Errorf("released = %d, want 1", browser.released)
	}
	if len(pub.topics) != 1 || pub.topics[0] != events.TopicRegistrationFailed {
		t.Errorf("published %v", pub.topics)
	}
}

func TestRegisterPanicReleasesPage(t *testing.T) {
	s := newFakeStore()
	page := &fakePage{htmlPanic: true}
	browser := &fakeBrowser{page: page}
	a := newTestAutomator(s, browser, &fakeEvidence{}, &recordingPublisher{})

	event := &model.Event{ID: "ev-panic", Status: model.StatusApproved, RegistrationURL: "https://example.com/reg"}
	result, err := a.Register(context.Background(), event)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Success {
		t.Error("panicked attempt must not succeed")
	}
	if !strings.Contains(result.ErrorMessage, "panicked") {
		t.Errorf("error message = %q", result.ErrorMessage)
	}
	if browser.released != 1 {
		t.Errorf("released = %d, want 1", browser.released)
	}
}

func TestRegisterWithoutURLStaysPreFlight(t *testing.T) {
	s := newFakeStore()
	browser := &fakeBrowser{page: &fakePage{}}
	a := newTestAutomator(s, browser, &fakeEvidence{}, &recordingPublisher{})

	event := &model.Event{ID: "ev-nourl", Status: model.StatusApproved}
	result, err := a.Register(context.Background(), event)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Success {
		t.Error("no URL cannot succeed")
	}
	if browser.acquired != 0 {
		t.Error("no URL means no browser work")
	}
	if len(s.statuses) != 0 {
		t.Errorf("statuses = %v, want none", s.statuses)
	}
}

func TestFindRegistrationForm(t *testing.T) {
	form, err := findRegistrationForm(registrationPage)
	if err != nil {
		t.Fatalf("findRegistrationForm: %v", err)
	}
	if form == nil {
		t.Fatal("form not found")
	}
	kinds := map[fieldKind]bool{}
	for _, f := range form.Fields {
		kinds[f.Kind] = true
	}
	if !kinds[fieldName] || !kinds[fieldEmail] {
		t.Errorf("fields = %+v, want name and email", form.Fields)
	}
	if form.SubmitSelector != "#submit-btn" {
		t.Errorf("submit selector = %q", form.SubmitSelector)
	}

	form, err = findRegistrationForm(`<html><body><p>No form here.</p></body></html>`)
	if err != nil {
		t.Fatalf("findRegistrationForm: %v", err)
	}
	if form != nil {
		t.Error("page without a form should return nil")
	}
}
