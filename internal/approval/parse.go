package approval

import (
	"strings"

	"github.com/groblegark/scout/internal/model"
)

// ParsedResponse is the interpreted meaning of a free-text reply. The
// original trimmed text is retained for audit.
type ParsedResponse struct {
	Approved     bool             `json:"approved"`
	Rejected     bool             `json:"rejected"`
	Status       model.Decision   `json:"status"`
	Confidence   model.Confidence `json:"confidence"`
	OriginalText string           `json:"original_text"`
}

// Exact-match tokens. Matching is case- and whitespace-insensitive.
var (
	approveTokens = map[string]bool{
		"yes": true, "y": true, "1": true, "ok": true, "okay": true,
		"yeah": true, "yep": true, "sure": true,
		"👍": true, "✅": true, "🙂": true,
	}
	rejectTokens = map[string]bool{
		"no": true, "n": true, "0": true, "cancel": true,
		"👎": true, "❌": true,
	}
	// Near-synonym phrases carry medium confidence.
	softRejectPhrases = map[string]bool{
		"nope": true, "pass": true, "not interested": true,
		"no thanks": true, "skip": true, "skip it": true,
	}
	// Payment-confirmation tokens: the human registered and paid manually.
	paymentTokens = map[string]bool{
		"pay": true, "paid": true, "done": true, "complete": true,
		"completed": true, "paid it": true,
	}
)

// ParseResponse maps free text to a decision with a confidence level.
// Text containing both an approval and a rejection cue, empty text, and
// unrecognized text all parse to unclear/low; the caller performs no state
// transition for those.
func ParseResponse(text string) ParsedResponse {
	trimmed := strings.TrimSpace(text)
	resp := ParsedResponse{
		Status:       model.DecisionUnclear,
		Confidence:   model.ConfidenceLow,
		OriginalText: trimmed,
	}
	if trimmed == "" {
		return resp
	}

	norm := strings.ToLower(trimmed)
	norm = strings.Join(strings.Fields(norm), " ")

	switch {
	case approveTokens[norm]:
		resp.Approved = true
		resp.Status = model.DecisionApproved
		resp.Confidence = model.ConfidenceHigh
		return resp
	case rejectTokens[norm]:
		resp.Rejected = true
		resp.Status = model.DecisionRejected
		resp.Confidence = model.ConfidenceHigh
		return resp
	case paymentTokens[norm]:
		resp.Status = model.DecisionPaymentConfirmed
		resp.Confidence = model.ConfidenceHigh
		return resp
	case softRejectPhrases[norm]:
		resp.Rejected = true
		resp.Status = model.DecisionRejected
		resp.Confidence = model.ConfidenceMedium
		return resp
	}

	// Longer replies: look for cue words. Conflicting cues stay unclear.
	hasApprove, hasReject := false, false
	for _, tok := range strings.Fields(norm) {
		if approveTokens[tok] {
			hasApprove = true
		}
		if rejectTokens[tok] || softRejectPhrases[tok] {
			hasReject = true
		}
	}
	switch {
	case hasApprove && hasReject:
		return resp
	case hasApprove:
		resp.Approved = true
		resp.Status = model.DecisionApproved
		resp.Confidence = model.ConfidenceMedium
	case hasReject:
		resp.Rejected = true
		resp.Status = model.DecisionRejected
		resp.Confidence = model.ConfidenceMedium
	}
	return resp
}
