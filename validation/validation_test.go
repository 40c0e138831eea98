package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var excludedSubdomains = []string{"www", "admin", "staging-*"}

func TestValidateDomain_Valid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"simple", "demo1.example.com", "demo1.example.com"},
		{"upper case and spaces", "  Demo1.Example.COM ", "demo1.example.com"},
		{"two chars", "ab.example.com", "ab.example.com"},
		{"internal hyphen", "my-demo.example.com", "my-demo.example.com"},
		{"max length", strings.Repeat("a", 63) + ".example.com", strings.Repeat("a", 63) + ".example.com"},
		{"digits only", "42.example.com", "42.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDomain(tt.raw, "example.com", excludedSubdomains)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// Validating the normalized output is a no-op
			again, err := ValidateDomain(got, "example.com", excludedSubdomains)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestValidateDomain_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantRule string
	}{
		{"empty", "   ", RuleRequired},
		{"wrong base host", "demo1.example.org", RuleSuffix},
		{"bare base host", "example.com", RuleSuffix},
		{"suffix without dot", "demo1example.com", RuleSuffix},
		{"single char", "a.example.com", RuleFormat},
		{"too long", strings.Repeat("a", 64) + ".example.com", RuleFormat},
		{"leading hyphen", "-demo.example.com", RuleFormat},
		{"trailing hyphen", "demo-.example.com", RuleFormat},
		{"underscore", "my_demo.example.com", RuleFormat},
		{"nested label", "a.b.example.com", RuleFormat},
		{"empty label", ".example.com", RuleFormat},
		{"excluded exact", "www.example.com", RuleExcluded},
		{"excluded upper case", "ADMIN.example.com", RuleExcluded},
		{"excluded pattern", "staging-1.example.com", RuleExcluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDomain(tt.raw, "example.com", excludedSubdomains)
			require.Error(t, err)
			assert.Empty(t, got)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "domain", verr.Field)
			assert.Equal(t, tt.wantRule, verr.Rule)
		})
	}
}

func TestValidateUsername(t *testing.T) {
	existing := map[string]bool{"alice": true}
	exists := func(name string) (bool, error) { return existing[name], nil }
	excluded := []string{"root", "Admin", "svc*"}

	tests := []struct {
		name     string
		raw      string
		want     string
		wantRule string
	}{
		{"lower-cases", "Bob", "bob", ""},
		{"letters and digits", "bob2024", "bob2024", ""},
		{"max length", "b" + strings.Repeat("x", 23), "b" + strings.Repeat("x", 23), ""},
		{"empty", "", "", RuleRequired},
		{"too short", "b", "", RuleFormat},
		{"too long", "b" + strings.Repeat("x", 24), "", RuleFormat},
		{"starts with digit", "1bob", "", RuleFormat},
		{"hyphen", "bob-smith", "", RuleFormat},
		{"excluded", "root", "", RuleExcluded},
		{"excluded case-insensitive", "ADMIN", "", RuleExcluded},
		{"excluded pattern", "svcbackup", "", RuleExcluded},
		{"taken case-insensitive", "ALICE", "", RuleTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUsername(tt.raw, exists, excluded)
			if tt.wantRule == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "username", verr.Field)
			assert.Equal(t, tt.wantRule, verr.Rule)
		})
	}
}

func TestValidateUsername_LookupError(t *testing.T) {
	boom := errors.New("database is locked")
	_, err := ValidateUsername("bob", func(string) (bool, error) { return false, boom }, nil)
	assert.ErrorIs(t, err, boom)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestIsExcluded(t *testing.T) {
	assert.True(t, IsExcluded("Root", []string{"root"}))
	assert.True(t, IsExcluded("ubuntu", []string{"ub*"}))
	assert.False(t, IsExcluded("alice", []string{"root"}))
}

func TestSuggestLabel(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"My Cool Demo", "my-cool-demo"},
		{"Café Été", "cafe-ete"},
		{"!!!", ""},
		{"x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestLabel(tt.text))
		})
	}

	long := SuggestLabel(strings.Repeat("word ", 30))
	assert.LessOrEqual(t, len(long), 63)
	assert.NotEmpty(t, long)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "domain", Rule: RuleFormat, Message: "bad"}
	assert.Equal(t, "domain: bad", err.Error())
}
