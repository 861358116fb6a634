package register

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/groblegark/scout/internal/model"
)

// ErrSafetyViolation marks a registration attempt refused because payment
// would be required. It is fatal to the attempt and never auto-retried.
var ErrSafetyViolation = errors.New("payment required: automated registration refused")

// Violation describes why the payment guard refused a page or event.
type Violation struct {
	Reason string
	Amount *float64
}

// paymentFieldCues identify payment-shaped inputs by name/id/autocomplete.
var paymentFieldCues = []string{
	"card", "cc-", "ccnum", "cvv", "cvc", "expir", "billing", "payment", "stripe", "iban",
}

// paymentFrameCues identify iframe-embedded payment widgets by src.
var paymentFrameCues = []string{
	"stripe", "paypal", "braintree", "squareup", "checkout", "adyen", "payment",
}

// paymentTextCues are textual price/checkout signals. Presence of any is a
// violation even when no numeric amount can be extracted; the listed cost
// can be wrong or stale, so the live page is checked independently.
var paymentTextCues = []string{
	"credit card", "debit card", "checkout", "payment due", "payment required",
	"total due", "price:", "fee:", "admission:", "purchase",
}

var amountPattern = regexp.MustCompile(`\$\s*([0-9]+(?:\.[0-9]{1,2})?)`)

// CheckListedCost refuses any event whose listed cost is above zero. This is
// the authoritative first line of defense; it runs before any navigation.
func CheckListedCost(e *model.Event) *Violation {
	if e.Cost > 0 {
		amount := e.Cost
		return &Violation{
			Reason: fmt.Sprintf("listed cost $%.2f is not free", e.Cost),
			Amount: &amount,
		}
	}
	return nil
}

// ScanPage inspects live page HTML for payment-shaped input fields,
// iframe-embedded payment widgets, and textual price/checkout cues. It is a
// best-effort second line of defense behind the listed cost.
func ScanPage(pageHTML string) *Violation {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		// An unparsable page cannot be cleared; refuse it.
		return &Violation{Reason: fmt.Sprintf("page could not be parsed for payment scan: %v", err)}
	}

	var violation *Violation
	walk(doc, func(n *html.Node) {
		if violation != nil || n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "input", "select":
			haystack := strings.ToLower(strings.Join([]string{
				attr(n, "name"), attr(n, "id"), attr(n, "autocomplete"), attr(n, "placeholder"),
			}, " "))
			if matchesAny(haystack, paymentFieldCues) {
				violation = &Violation{Reason: "payment-shaped form field detected: " + firstMatch(haystack, paymentFieldCues)}
			}
		case "iframe":
			src := strings.ToLower(attr(n, "src"))
			if matchesAny(src, paymentFrameCues) {
				violation = &Violation{Reason: "embedded payment widget detected: " + firstMatch(src, paymentFrameCues)}
			}
		}
	})
	if violation != nil {
		violation.Amount = extractAmount(pageHTML)
		return violation
	}

	pageText := strings.ToLower(text(doc))
	if cue := firstMatch(pageText, paymentTextCues); cue != "" {
		return &Violation{
			Reason: "price/checkout text detected: " + cue,
			Amount: extractAmount(pageHTML),
		}
	}
	if amount := extractAmount(pageText); amount != nil && *amount > 0 {
		return &Violation{
			Reason: fmt.Sprintf("dollar amount $%.2f found on registration page", *amount),
			Amount: amount,
		}
	}
	return nil
}

// extractAmount pulls the first dollar amount out of the text, if any.
func extractAmount(s string) *float64 {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

func firstMatch(haystack string, cues []string) string {
	for _, cue := range cues {
		if strings.Contains(haystack, cue) {
			return cue
		}
	}
	return ""
}
