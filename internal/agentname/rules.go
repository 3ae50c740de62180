// Package agentname extracts a human agent identity from the free-text
// fields of a call record.
package agentname

import (
	"strings"
	"unicode"
)

// MaxNameLength is the longest trimmed field still considered a name
const MaxNameLength = 50

// DefaultDenylist holds the technical tokens that show up in name-like
// positions of the feed: queue names, routing keywords and placeholders.
var DefaultDenylist = []string{
	"front office", "queue", "file", "groupe", "group", "ring group", "hunt group",
	"ivr", "svi", "menu", "standard", "accueil", "reception", "operator", "operateur",
	"voicemail", "messagerie", "transfer", "transfert", "forward", "renvoi",
	"inbound", "outbound", "internal", "external", "entrant", "sortant", "interne", "externe",
	"answered", "no answer", "noanswer", "missed", "busy", "failed", "congestion",
	"cancel", "canceled", "cancelled", "abandoned", "completed", "hangup", "ringing",
	"in", "out", "trunk", "sip", "pstn", "gateway", "system", "default", "extension", "ext",
	"unknown", "inconnu", "null", "undefined", "nil", "none", "anonymous", "anonyme",
	"n/a", "na", "-", "--", "?", "private", "masque", "restricted",
}

// Rule is one step of the likely-name predicate
type Rule struct {
	Name  string
	Check func(trimmed, lower string) bool
}

// Rules evaluates the likely-name predicate in order, stopping at the first failure
type Rules struct {
	steps []Rule
}

// NewRules builds the likely-name predicate over the given denylist
func NewRules(denylist map[string]struct{}) Rules {
	return Rules{steps: []Rule{
		{Name: "non_empty", Check: func(trimmed, _ string) bool { return trimmed != "" }},
		{Name: "not_denylisted", Check: func(_, lower string) bool {
			_, denied := denylist[lower]
			return !denied
		}},
		{Name: "not_numeric", Check: func(trimmed, _ string) bool { return !IsNumeric(trimmed) }},
		{Name: "has_letter", Check: func(trimmed, _ string) bool { return HasLetter(trimmed) }},
		{Name: "max_length", Check: func(trimmed, _ string) bool { return len([]rune(trimmed)) <= MaxNameLength }},
	}}
}

// Evaluate returns the name of the first failing rule, or "" when value looks like a name
func (r Rules) Evaluate(value string) string {
	trimmed := strings.TrimSpace(value)
	lower := strings.ToLower(trimmed)
	for _, step := range r.steps {
		if !step.Check(trimmed, lower) {
			return step.Name
		}
	}
	return ""
}

// IsLikelyName reports whether value passes every rule
func (r Rules) IsLikelyName(value string) bool {
	return r.Evaluate(value) == ""
}

// IsNumeric reports whether s holds only digits and spaces, with at least one digit
func IsNumeric(s string) bool {
	digits := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == ' ':
		default:
			return false
		}
	}
	return digits > 0
}

// HasLetter reports whether s holds an ASCII or Latin-1 letter
func HasLetter(s string) bool {
	for _, c := range s {
		if c <= unicode.MaxLatin1 && unicode.IsLetter(c) {
			return true
		}
	}
	return false
}
