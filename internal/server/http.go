package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/store"
)

// NewHTTPHandler returns an http.Handler with all routes registered. When
// apiKey is non-empty, requests (except health, metrics, and the SMS webhook)
// must include a valid X-API-Key header.
func (s *Server) NewHTTPHandler(apiKey string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("POST /v1/events/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/events/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /v1/events/{id}/register", s.handleRegister)
	mux.HandleFunc("POST /v1/events/{id}/calendar", s.handleCalendarCheck)
	mux.HandleFunc("POST /v1/events/bulk-action", s.handleBulkAction)
	mux.HandleFunc("POST /v1/emergency-shutdown", s.handleEmergencyShutdown)
	mux.HandleFunc("POST /v1/webhooks/sms", s.handleSMSWebhook)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return AuthMiddleware(apiKey, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"halted": s.pipeline.Halted(),
	})
}

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{
		Source: q.Get("source"),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}

	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.Status(st))
		}
	}
	if v := q.Get("free"); v != "" {
		filter.FreeOnly = v == "true" || v == "1"
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	events, total, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	// Ensure events is never null in JSON output.
	if events == nil {
		events = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
	})
}

// handleGetEvent handles GET /v1/events/{id}. The response includes the
// registration result and the open approval request when present.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	event, err := s.store.GetEvent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	out := map[string]any{"event": event}
	if result, err := s.store.GetRegistrationResult(r.Context(), id); err == nil {
		out["registration"] = result
	}
	if req, err := s.store.OpenApprovalForEvent(r.Context(), id); err == nil && req != nil {
		out["approval"] = req
	}
	writeJSON(w, http.StatusOK, out)
}

// handleApprove handles POST /v1/events/{id}/approve.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, r.PathValue("id"), "yes")
}

// handleReject handles POST /v1/events/{id}/reject.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, r.PathValue("id"), "no")
}

// decide routes an operator decision through the same path as an inbound
// reply, so the open approval request is resolved and the lifecycle
// transition is applied once.
func (s *Server) decide(w http.ResponseWriter, r *http.Request, eventID, text string) {
	parsed, err := s.pipeline.HandleApprovalResponse(r.Context(), eventID, text)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no open approval request for event")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"event_id": eventID,
		"decision": parsed.Status,
	})
}

// handleRegister handles POST /v1/events/{id}/register. This is the operator
// retry path; a recorded success still short-circuits in the automator, and a
// payment-guard refusal is reported as a normal (unsuccessful) result.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if s.pipeline.Halted() {
		writeError(w, http.StatusServiceUnavailable, "pipeline is halted")
		return
	}

	result, err := s.pipeline.RegisterEvent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if result == nil {
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "registration produced no result")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      result.Success,
		"registration": result,
	})
}

// handleCalendarCheck handles POST /v1/events/{id}/calendar.
func (s *Server) handleCalendarCheck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conflict, err := s.pipeline.CheckCalendar(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": id,
		"conflict": conflict,
		"clear":    conflict == nil,
	})
}

type bulkActionInput struct {
	Action   string   `json:"action"`
	EventIDs []string `json:"event_ids"`
}

type bulkActionResult struct {
	EventID string `json:"event_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// handleBulkAction handles POST /v1/events/bulk-action. Each event is decided
// independently; one failure does not stop the rest.
func (s *Server) handleBulkAction(w http.ResponseWriter, r *http.Request) {
	var in bulkActionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var text string
	switch in.Action {
	case "approve":
		text = "yes"
	case "reject":
		text = "no"
	default:
		writeError(w, http.StatusBadRequest, "action must be approve or reject")
		return
	}
	if len(in.EventIDs) == 0 {
		writeError(w, http.StatusBadRequest, "event_ids is required")
		return
	}

	results := make([]bulkActionResult, 0, len(in.EventIDs))
	for _, id := range in.EventIDs {
		res := bulkActionResult{EventID: id}
		if _, err := s.pipeline.HandleApprovalResponse(r.Context(), id, text); err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type shutdownInput struct {
	Actor string `json:"actor"`
}

// handleEmergencyShutdown handles POST /v1/emergency-shutdown.
func (s *Server) handleEmergencyShutdown(w http.ResponseWriter, r *http.Request) {
	var in shutdownInput
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Actor == "" {
		in.Actor = "api"
	}

	s.pipeline.Halt(r.Context(), in.Actor)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "halted": true})
}

// twimlEmpty is the no-reply TwiML response Twilio expects from a webhook.
const twimlEmpty = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// handleSMSWebhook handles POST /v1/webhooks/sms: Twilio's inbound message
// callback. The reply is matched to the sender's most recent open approval
// request. Unmatched or unclear replies are acknowledged without any state
// change so Twilio does not retry.
func (s *Server) handleSMSWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	if s.twilioToken != "" {
		sig := r.Header.Get("X-Twilio-Signature")
		if !validTwilioSignature(s.twilioToken, requestURL(r), r.PostForm, sig) {
			writeError(w, http.StatusForbidden, "invalid webhook signature")
			return
		}
	}

	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")

	req, err := s.openApprovalForSender(r, from)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to match reply")
		return
	}
	if req == nil {
		s.logger.Info("sms reply with no open approval", "from", from)
		s.writeTwiML(w)
		return
	}

	if _, err := s.pipeline.HandleApprovalResponse(r.Context(), req.EventID, body); err != nil {
		s.logger.Error("failed to apply sms reply", "event_id", req.EventID, "err", err)
	}
	s.writeTwiML(w)
}

// openApprovalForSender returns the sender's most recently sent open approval
// request, or nil when none is pending.
func (s *Server) openApprovalForSender(r *http.Request, from string) (*model.ApprovalRequest, error) {
	open, err := s.store.ListOpenApprovals(r.Context())
	if err != nil {
		return nil, err
	}
	var latest *model.ApprovalRequest
	for _, req := range open {
		if req.Recipient != from {
			continue
		}
		if latest == nil || req.SentAt.After(latest.SentAt) {
			latest = req
		}
	}
	return latest, nil
}

func (s *Server) writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twimlEmpty))
}
