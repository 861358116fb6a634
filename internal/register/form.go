package register

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// fieldKind classifies a recognized form field.
type fieldKind string

const (
	fieldName       fieldKind = "name"
	fieldEmail      fieldKind = "email"
	fieldPhone      fieldKind = "phone"
	fieldChildCount fieldKind = "child_count"
	fieldChildAge   fieldKind = "child_age"
)

// fieldCues maps a field kind to the substrings that identify it in an
// input's name, id, placeholder, or autocomplete attributes. Evaluated in
// order; the first hit wins.
var fieldCues = []struct {
	kind fieldKind
	cues []string
}{
	{fieldEmail, []string{"email", "e-mail"}},
	{fieldPhone, []string{"phone", "mobile", "tel"}},
	{fieldChildCount, []string{"children", "kids", "attendees", "participants", "guests", "quantity", "qty"}},
	{fieldChildAge, []string{"age"}},
	{fieldName, []string{"name"}},
}

// formField is one recognized input inside the registration form.
type formField struct {
	Kind     fieldKind
	Selector string
}

// registrationForm is the heuristically located form on a registration page.
type registrationForm struct {
	Fields         []formField
	SubmitSelector string
}

// submitTextCues identify a clickable submit control by its visible text.
var submitTextCues = []string{"register", "sign up", "submit", "rsvp", "book", "reserve", "complete"}

// findRegistrationForm parses the page and returns the first form-like
// element with recognized fields, or nil when no form is found.
func findRegistrationForm(pageHTML string) (*registrationForm, error) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	formNode := firstElement(doc, "form")
	if formNode == nil {
		return nil, nil
	}

	form := &registrationForm{}
	walk(formNode, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "input", "select", "textarea":
			if kind, sel, ok := classifyField(n); ok {
				form.Fields = append(form.Fields, formField{Kind: kind, Selector: sel})
			}
			if attr(n, "type") == "submit" && form.SubmitSelector == "" {
				form.SubmitSelector = selectorFor(n)
			}
		case "button":
			typ := attr(n, "type")
			if typ == "submit" || typ == "" {
				if form.SubmitSelector == "" && (typ == "submit" || matchesAny(strings.ToLower(text(n)), submitTextCues)) {
					form.SubmitSelector = selectorFor(n)
				}
			}
		}
	})

	if form.SubmitSelector == "" {
		// Generic fallback: the first submit-typed control anywhere on the page.
		form.SubmitSelector = "form input[type=submit], form button"
	}
	return form, nil
}

// classifyField recognizes name/email/phone/child fields by attribute cues.
// Payment-shaped inputs are deliberately not classified here; the guard
// refuses the page before filling starts.
func classifyField(n *html.Node) (fieldKind, string, bool) {
	if t := attr(n, "type"); t == "hidden" || t == "submit" || t == "button" {
		return "", "", false
	}
	haystack := strings.ToLower(strings.Join([]string{
		attr(n, "name"), attr(n, "id"), attr(n, "placeholder"), attr(n, "autocomplete"), attr(n, "aria-label"),
	}, " "))
	if t := attr(n, "type"); t == "email" {
		return fieldEmail, selectorFor(n), true
	} else if t == "tel" {
		return fieldPhone, selectorFor(n), true
	}
	for _, c := range fieldCues {
		if matchesAny(haystack, c.cues) {
			sel := selectorFor(n)
			if sel == "" {
				return "", "", false
			}
			return c.kind, sel, true
		}
	}
	return "", "", false
}

// selectorFor builds a CSS selector for a node, preferring id then name.
func selectorFor(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		return "#" + id
	}
	if name := attr(n, "name"); name != "" {
		return fmt.Sprintf("%s[name=%q]", n.Data, name)
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func firstElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// text collects the visible text under a node.
func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
		}
	})
	return strings.TrimSpace(b.String())
}

func matchesAny(haystack string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(haystack, cue) {
			return true
		}
	}
	return false
}
