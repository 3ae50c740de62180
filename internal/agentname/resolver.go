package agentname

import (
	"regexp"
	"strings"
)

var (
	parenthetical = regexp.MustCompile(`\s*\(.*$`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Resolver picks the authorized agent name out of a record's fields
type Resolver struct {
	rules      Rules
	authorized map[string]string // lower-cased name -> configured spelling
}

// NewResolver creates a resolver. Both lists are matched case-insensitively;
// a resolved name always comes back in its first configured spelling.
func NewResolver(authorized, denylist []string) *Resolver {
	spellings := make(map[string]string, len(authorized))
	for _, name := range authorized {
		name = Normalize(name)
		key := strings.ToLower(name)
		if _, dup := spellings[key]; key != "" && !dup {
			spellings[key] = name
		}
	}
	return &Resolver{
		rules:      NewRules(toSet(denylist)),
		authorized: spellings,
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// Rules exposes the likely-name predicate used by the resolver
func (r *Resolver) Rules() Rules {
	return r.rules
}

// IsAuthorized reports whether name is on the allowlist
func (r *Resolver) IsAuthorized(name string) bool {
	_, ok := r.authorized[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// AuthorizedCount returns the size of the allowlist
func (r *Resolver) AuthorizedCount() int {
	return len(r.authorized)
}

// Resolve scans fields from last to first and returns the normalized,
// authorized agent name of the first likely-name field, or "".
//
// Only the first candidate is examined: when it normalizes to a number or is
// not authorized the result is "", earlier fields are not retried.
func (r *Resolver) Resolve(fields []string) string {
	for i := len(fields) - 1; i >= 0; i-- {
		if !r.rules.IsLikelyName(fields[i]) {
			continue
		}

		name := Normalize(fields[i])
		if name == "" || IsNumeric(name) {
			return ""
		}
		return r.authorized[strings.ToLower(name)]
	}
	return ""
}

// Normalize strips a parenthetical suffix and everything from the first
// '.', then collapses whitespace runs.
func Normalize(value string) string {
	name := parenthetical.ReplaceAllString(value, "")
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[:idx]
	}
	name = whitespaceRun.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
