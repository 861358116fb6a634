// Package server exposes the HTTP control surface: event queries, operator
// decisions, manual registration, emergency shutdown, and the inbound SMS
// webhook.
package server

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/groblegark/scout/internal/metrics"
	"github.com/groblegark/scout/internal/pipeline"
	"github.com/groblegark/scout/internal/store"
)

// Server handles the HTTP API backed by the store and the pipeline.
type Server struct {
	store       store.Store
	pipeline    *pipeline.Pipeline
	metrics     *metrics.Metrics
	twilioToken string
	logger      *slog.Logger
}

// New returns a Server. twilioToken validates inbound webhook signatures;
// empty disables validation.
func New(s store.Store, p *pipeline.Pipeline, m *metrics.Metrics, twilioToken string, logger *slog.Logger) *Server {
	return &Server{
		store:       s,
		pipeline:    p,
		metrics:     m,
		twilioToken: twilioToken,
		logger:      logger,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

// AuthMiddleware wraps an http.Handler and checks the X-API-Key header. When
// key is empty, auth is disabled and all requests pass through. GET
// /v1/health, GET /metrics, and the SMS webhook (signature-authenticated)
// are always exempt.
func AuthMiddleware(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/health":
			next.ServeHTTP(w, r)
			return
		case r.Method == http.MethodGet && r.URL.Path == "/metrics":
			next.ServeHTTP(w, r)
			return
		case r.Method == http.MethodPost && r.URL.Path == "/v1/webhooks/sms":
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-API-Key")
		if provided == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validTwilioSignature checks the X-Twilio-Signature header: base64 HMAC-SHA1
// over the request URL concatenated with the sorted form parameters.
func validTwilioSignature(authToken, requestURL string, form url.Values, signature string) bool {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := requestURL
	for _, k := range keys {
		for _, v := range form[k] {
			payload += k + v
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// requestURL reconstructs the externally visible URL Twilio signed.
func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if v := r.Header.Get("X-Forwarded-Proto"); v != "" {
		scheme = v
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
