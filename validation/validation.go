// Package validation checks user-supplied subdomains and usernames against policy.
package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

var (
	labelPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,61}[a-z0-9]$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]{1,23}$`)
)

// Rule names reported in ValidationError.Rule.
const (
	RuleSuffix   = "suffix"
	RuleFormat   = "format"
	RuleExcluded = "excluded"
	RuleTaken    = "taken"
	RuleRequired = "required"
)

// ValidationError identifies the field and the rule a value failed.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateDomain normalizes raw and checks it is an allowed label under baseHost.
// It returns the lower-cased, trimmed domain.
func ValidateDomain(raw, baseHost string, excluded []string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" {
		return "", &ValidationError{Field: "domain", Rule: RuleRequired, Message: "This field is required."}
	}

	suffix := "." + strings.ToLower(baseHost)
	if !strings.HasSuffix(d, suffix) {
		return "", &ValidationError{
			Field:   "domain",
			Rule:    RuleSuffix,
			Message: fmt.Sprintf("Invalid domain. Must end with %s", suffix),
		}
	}

	label := strings.TrimSuffix(d, suffix)
	if !labelPattern.MatchString(label) {
		return "", &ValidationError{
			Field: "domain",
			Rule:  RuleFormat,
			Message: "Invalid subdomain. Must be between 2 and 63 characters long, " +
				"contain only lowercase letters, numbers, and hyphens, " +
				"and start and end with a letter or number.",
		}
	}

	if matchesAny(label, excluded) {
		return "", &ValidationError{Field: "domain", Rule: RuleExcluded, Message: "This subdomain is not allowed."}
	}

	return d, nil
}

// ValidateUsername checks raw against the username policy and returns its lower-cased form.
// exists reports whether an account with the given lower-cased name is already present.
func ValidateUsername(raw string, exists func(string) (bool, error), excluded []string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", &ValidationError{Field: "username", Rule: RuleRequired, Message: "This field is required."}
	}

	if !usernamePattern.MatchString(u) {
		return "", &ValidationError{
			Field: "username",
			Rule:  RuleFormat,
			Message: "Invalid username. Must be between 2 and 24 characters long, " +
				"contain only letters and numbers, and start with a letter.",
		}
	}

	lower := strings.ToLower(u)
	if matchesAny(lower, lowerAll(excluded)) {
		return "", &ValidationError{Field: "username", Rule: RuleExcluded, Message: "This username is not allowed."}
	}

	if exists != nil {
		taken, err := exists(lower)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return "", &ValidationError{Field: "username", Rule: RuleTaken, Message: "This username is already in use."}
		}
	}

	return lower, nil
}

// IsExcluded reports whether name matches an exclusion list entry.
func IsExcluded(name string, excluded []string) bool {
	return matchesAny(strings.ToLower(name), lowerAll(excluded))
}

// SuggestLabel turns free text such as a project title into a candidate
// subdomain label, or returns an empty string when nothing usable remains.
func SuggestLabel(text string) string {
	label := slug.Make(text)
	if len(label) > 63 {
		label = strings.Trim(label[:63], "-")
	}
	if !labelPattern.MatchString(label) {
		return ""
	}
	return label
}

// matchesAny accepts exact entries and path.Match glob patterns such as "admin-*".
func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func lowerAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strings.ToLower(s)
	}
	return out
}
