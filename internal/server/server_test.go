package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/groblegark/scout/internal/approval"
	"github.com/groblegark/scout/internal/calendar"
	"github.com/groblegark/scout/internal/dedup"
	"github.com/groblegark/scout/internal/metrics"
	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/pipeline"
	"github.com/groblegark/scout/internal/profile"
	"github.com/groblegark/scout/internal/score"
	"github.com/groblegark/scout/internal/store"
)

// memStore is an in-memory store.Store for HTTP handler tests.
type memStore struct {
	store.Store // panic on anything not overridden

	events    map[string]*model.Event
	approvals map[string]*model.ApprovalRequest
	results   map[string]*model.RegistrationResult
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[string]*model.Event),
		approvals: make(map[string]*model.ApprovalRequest),
		results:   make(map[string]*model.RegistrationResult),
	}
}

func (m *memStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e, nil
}

func (m *memStore) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.Event, int, error) {
	var out []*model.Event
	for _, e := range m.events {
		if len(filter.Status) > 0 {
			match := false
			for _, s := range filter.Status {
				if e.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if filter.FreeOnly && !e.Free() {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateEventStatus(_ context.Context, id string, status model.Status) error {
	e, ok := m.events[id]
	if !ok {
		return store.ErrNotFound
	}
	if e.Status == status {
		return nil
	}
	if !model.CanTransition(e.Status, status) {
		return store.ErrIllegalTransition
	}
	e.Status = status
	return nil
}

func (m *memStore) OpenApprovalForEvent(_ context.Context, eventID string) (*model.ApprovalRequest, error) {
	for _, req := range m.approvals {
		if req.EventID == eventID && !req.Resolved {
			return req, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListOpenApprovals(_ context.Context) ([]*model.ApprovalRequest, error) {
	var open []*model.ApprovalRequest
	for _, req := range m.approvals {
		if !req.Resolved {
			open = append(open, req)
		}
	}
	return open, nil
}

func (m *memStore) ResolveApproval(_ context.Context, id string, resp *model.ApprovalResponse) error {
	req, ok := m.approvals[id]
	if !ok {
		return store.ErrNotFound
	}
	req.Response = resp
	req.Resolved = true
	return nil
}

func (m *memStore) GetRegistrationResult(_ context.Context, eventID string) (*model.RegistrationResult, error) {
	r, ok := m.results[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

type stubRegistrar struct {
	registered []string
	result     *model.RegistrationResult
	err        error
}

func (r *stubRegistrar) Register(_ context.Context, e *model.Event) (*model.RegistrationResult, error) {
	r.registered = append(r.registered, e.ID)
	if r.result != nil {
		res := *r.result
		res.EventID = e.ID
		return &res, r.err
	}
	return &model.RegistrationResult{EventID: e.ID, Success: true}, r.err
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
func (noopPublisher) Close() error                               { return nil }

type fakeHistory struct{}

func (fakeHistory) IsVenueVisited(context.Context, string) (bool, error) { return false, nil }

type testRig struct {
	server    *Server
	store     *memStore
	registrar *stubRegistrar
	pipeline  *pipeline.Pipeline
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	prof := profile.DefaultProfile()
	prof.Family.Phone = "+15555550100"

	ms := newMemStore()
	registrar := &stubRegistrar{}
	pub := noopPublisher{}

	ap := approval.New(ms, pub, nil, prof, logger)
	p := pipeline.New(
		ms,
		nil,
		dedup.New(prof.Dedup, prof.VenueAliases, logger),
		score.New(prof, fakeHistory{}, logger),
		ap,
		registrar,
		calendar.NoopChecker{},
		metrics.New(),
		pub,
		prof,
		logger,
	)
	srv := New(ms, p, metrics.New(), "", logger)
	return &testRig{server: srv, store: ms, registrar: registrar, pipeline: p}
}

// addPending seeds an event awaiting a decision together with its open
// approval request.
func (r *testRig) addPending(id, recipient string) {
	r.store.events[id] = &model.Event{
		ID: id, Title: "Storytime", Description: "d",
		Status: model.StatusPendingApproval, RegistrationURL: "https://x/reg",
	}
	r.store.approvals["ap-"+id] = &model.ApprovalRequest{
		ID: "ap-" + id, EventID: id, Channel: model.ChannelSMS,
		Recipient: recipient, SentAt: time.Now().UTC(),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.Contains(rec.Header().Get("Content-Type"), "json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestAuthMiddleware(t *testing.T) {
	rig := newRig(t)
	h := rig.server.NewHTTPHandler("secret")

	rec, _ := doJSON(t, h, "GET", "/v1/events", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	rec, _ = doJSON(t, h, "GET", "/v1/events", "", map[string]string{"X-API-Key": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", rec.Code)
	}

	rec, _ = doJSON(t, h, "GET", "/v1/events", "", map[string]string{"X-API-Key": "secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}

	// Health and metrics stay open.
	rec, _ = doJSON(t, h, "GET", "/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rec.Code)
	}
	rec, _ = doJSON(t, h, "GET", "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics: status = %d, want 200", rec.Code)
	}
}

func TestListEventsFilters(t *testing.T) {
	rig := newRig(t)
	rig.store.events["ev-1"] = &model.Event{ID: "ev-1", Title: "Free Walk", Description: "d", Status: model.StatusApproved}
	rig.store.events["ev-2"] = &model.Event{ID: "ev-2", Title: "Paid Camp", Description: "d", Status: model.StatusApproved, Cost: 25}
	rig.store.events["ev-3"] = &model.Event{ID: "ev-3", Title: "New Find", Description: "d", Status: model.StatusDiscovered}
	h := rig.server.NewHTTPHandler("")

	rec, out := doJSON(t, h, "GET", "/v1/events?status=approved&free=true", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := out["total"].(float64); got != 1 {
		t.Errorf("total = %v, want 1", got)
	}

	// No matches must serialize as an empty array, not null.
	rec, _ = doJSON(t, h, "GET", "/v1/events?status=booked", "", nil)
	if !strings.Contains(rec.Body.String(), `"events":[]`) {
		t.Errorf("empty list body = %s", rec.Body)
	}
}

func TestGetEventIncludesRegistration(t *testing.T) {
	rig := newRig(t)
	rig.store.events["ev-1"] = &model.Event{ID: "ev-1", Title: "Walk", Description: "d", Status: model.StatusBooked}
	rig.store.results["ev-1"] = &model.RegistrationResult{EventID: "ev-1", Success: true, ConfirmationNumber: "SC-1"}
	h := rig.server.NewHTTPHandler("")

	rec, out := doJSON(t, h, "GET", "/v1/events/ev-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	reg, ok := out["registration"].(map[string]any)
	if !ok {
		t.Fatalf("registration missing: %v", out)
	}
	if reg["confirmation_number"] != "SC-1" {
		t.Errorf("confirmation = %v", reg["confirmation_number"])
	}

	rec, out = doJSON(t, h, "GET", "/v1/events/ev-missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing event: status = %d, want 404", rec.Code)
	}
	if out["success"] != false {
		t.Errorf("error body = %v", out)
	}
}

func TestApproveResolvesOpenRequest(t *testing.T) {
	rig := newRig(t)
	rig.addPending("ev-1", "+15555550100")
	h := rig.server.NewHTTPHandler("")

	rec, out := doJSON(t, h, "POST", "/v1/events/ev-1/approve", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if out["decision"] != "approved" {
		t.Errorf("decision = %v", out["decision"])
	}
	if rig.store.events["ev-1"].Status != model.StatusApproved {
		t.Errorf("event status = %s", rig.store.events["ev-1"].Status)
	}
	if !rig.store.approvals["ap-ev-1"].Resolved {
		t.Error("approval request not resolved")
	}
}

func TestRejectWithoutOpenRequest(t *testing.T) {
	rig := newRig(t)
	rig.store.events["ev-1"] = &model.Event{ID: "ev-1", Title: "Walk", Description: "d", Status: model.StatusScored}
	h := rig.server.NewHTTPHandler("")

	rec, _ := doJSON(t, h, "POST", "/v1/events/ev-1/reject", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	rig := newRig(t)
	rig.store.events["ev-1"] = &model.Event{ID: "ev-1", Title: "Walk", Description: "d", Status: model.StatusApproved, RegistrationURL: "https://x/reg"}
	h := rig.server.NewHTTPHandler("")

	rec, out := doJSON(t, h, "POST", "/v1/events/ev-1/register", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if out["success"] != true {
		t.Errorf("success = %v", out["success"])
	}
	if len(rig.registrar.registered) != 1 {
		t.Errorf("registrar calls = %v", rig.registrar.registered)
	}

	rec, _ = doJSON(t, h, "POST", "/v1/events/ev-missing/register", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing event: status = %d, want 404", rec.Code)
	}
}

func TestBulkActionValidation(t *testing.T) {
	rig := newRig(t)
	h := rig.server.NewHTTPHandler("")

	rec, _ := doJSON(t, h, "POST", "/v1/events/bulk-action", `{"action":"delete","event_ids":["ev-1"]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad action: status = %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, h, "POST", "/v1/events/bulk-action", `{"action":"approve","event_ids":[]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty ids: status = %d, want 400", rec.Code)
	}
}

func TestBulkActionPartialFailure(t *testing.T) {
	rig := newRig(t)
	rig.addPending("ev-1", "+15555550100")
	h := rig.server.NewHTTPHandler("")

	rec, out := doJSON(t, h, "POST", "/v1/events/bulk-action", `{"action":"approve","event_ids":["ev-1","ev-ghost"]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	results := out["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	first := results[0].(map[string]any)
	second := results[1].(map[string]any)
	if first["success"] != true || second["success"] != false {
		t.Errorf("results = %v / %v", first, second)
	}
	if rig.store.events["ev-1"].Status != model.StatusApproved {
		t.Errorf("event status = %s", rig.store.events["ev-1"].Status)
	}
}

func TestEmergencyShutdownHaltsRegistration(t *testing.T) {
	rig := newRig(t)
	rig.store.events["ev-1"] = &model.Event{ID: "ev-1", Title: "Walk", Description: "d", Status: model.StatusApproved, RegistrationURL: "https://x/reg"}
	h := rig.server.NewHTTPHandler("")

	rec, out := doJSON(t, h, "POST", "/v1/emergency-shutdown", `{"actor":"parent"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["halted"] != true {
		t.Errorf("body = %v", out)
	}
	if !rig.pipeline.Halted() {
		t.Fatal("pipeline not halted")
	}

	rec, _ = doJSON(t, h, "POST", "/v1/events/ev-1/register", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("register while halted: status = %d, want 503", rec.Code)
	}
}

func TestCalendarCheckClear(t *testing.T) {
	rig := newRig(t)
	rig.store.events["ev-1"] = &model.Event{ID: "ev-1", Title: "Walk", Description: "d", Status: model.StatusScored, Date: time.Now().UTC()}
	h := rig.server.NewHTTPHandler("")

	rec, out := doJSON(t, h, "POST", "/v1/events/ev-1/calendar", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["clear"] != true {
		t.Errorf("body = %v", out)
	}
}

func postForm(h http.Handler, path string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSMSWebhookAppliesReply(t *testing.T) {
	rig := newRig(t)
	rig.addPending("ev-1", "+15555550100")
	h := rig.server.NewHTTPHandler("secret") // webhook is exempt from API-key auth

	form := url.Values{"From": {"+15555550100"}, "Body": {"yes"}}
	rec := postForm(h, "/v1/webhooks/sms", form, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("content type = %s", ct)
	}
	if rig.store.events["ev-1"].Status != model.StatusApproved {
		t.Errorf("event status = %s", rig.store.events["ev-1"].Status)
	}
}

func TestSMSWebhookUnknownSender(t *testing.T) {
	rig := newRig(t)
	rig.addPending("ev-1", "+15555550100")
	h := rig.server.NewHTTPHandler("")

	form := url.Values{"From": {"+19995550000"}, "Body": {"yes"}}
	rec := postForm(h, "/v1/webhooks/sms", form, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rig.store.events["ev-1"].Status != model.StatusPendingApproval {
		t.Errorf("unmatched reply changed event status to %s", rig.store.events["ev-1"].Status)
	}
}

func twilioSign(token, requestURL string, form url.Values) string {
	payload := requestURL
	for _, k := range []string{"Body", "From"} { // sorted keys
		for _, v := range form[k] {
			payload += k + v
		}
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSMSWebhookSignature(t *testing.T) {
	rig := newRig(t)
	rig.server.twilioToken = "twil-token"
	rig.addPending("ev-1", "+15555550100")
	h := rig.server.NewHTTPHandler("")

	form := url.Values{"From": {"+15555550100"}, "Body": {"yes"}}
	reqURL := "http://example.com/v1/webhooks/sms"

	rec := postForm(h, "/v1/webhooks/sms", form, map[string]string{"X-Twilio-Signature": "bogus"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("bad signature: status = %d, want 403", rec.Code)
	}
	if rig.store.events["ev-1"].Status != model.StatusPendingApproval {
		t.Errorf("forged reply changed event status to %s", rig.store.events["ev-1"].Status)
	}

	sig := twilioSign("twil-token", reqURL, form)
	rec = postForm(h, "/v1/webhooks/sms", form, map[string]string{"X-Twilio-Signature": sig})
	if rec.Code != http.StatusOK {
		t.Fatalf("signed request: status = %d, body %s", rec.Code, rec.Body)
	}
	if rig.store.events["ev-1"].Status != model.StatusApproved {
		t.Errorf("event status = %s", rig.store.events["ev-1"].Status)
	}
}
