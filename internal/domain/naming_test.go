package domain_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

func newRuleSet(t *testing.T, rules domain.NamingRules) *domain.NamingRuleSet {
	t.Helper()
	rs, err := domain.NewNamingRuleSet(rules)
	if err != nil {
		t.Fatalf("NewNamingRuleSet failed: %v", err)
	}
	return rs
}

func TestSharePointNames_AcceptsOrdinaryNames(t *testing.T) {
	for _, name := range []string{"Acme Corp", "Acme Exports", "D 0030000321", "Globex (UK) Ltd.co", "forms-and-more", "a"} {
		if !domain.SharePointNames.IsValid(name, true) {
			t.Errorf("IsValid(%q) = false, want true", name)
		}
	}
}

func TestSharePointNames_DisallowedCharactersAnywhere(t *testing.T) {
	base := "AcmeCorp"
	for _, c := range []string{`"`, `*`, `:`, `<`, `>`, `?`, `/`, `\`, `|`} {
		for pos := 0; pos <= len(base); pos++ {
			candidate := base[:pos] + c + base[pos:]
			if domain.SharePointNames.IsValid(candidate, false) {
				t.Errorf("IsValid(%q) = true, want false", candidate)
			}
		}
	}
}

func TestSharePointNames_PrefixAndSuffixAnchored(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"~$report", false},
		{"report~$x", true}, // prefix rule only applies at the start
		{" leading", false},
		{"trailing ", false},
		{"ends with dot.", false},
		{"inner. dot", true},
	}
	for _, tt := range tests {
		if got := domain.SharePointNames.IsValid(tt.name, false); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSharePointNames_SubstringMatchesAnywhere(t *testing.T) {
	for _, name := range []string{"_vti_", "x_vti_", "_vti_x", "a_vti_b"} {
		if domain.SharePointNames.IsValid(name, false) {
			t.Errorf("IsValid(%q) = true, want false", name)
		}
	}
}

func TestSharePointNames_ExactNamesCaseSensitive(t *testing.T) {
	rs := domain.SharePointNames
	for _, name := range []string{"CON", "PRN", "AUX", "NUL", "COM1", "LPT9", ".lock", "desktop.ini"} {
		if rs.IsValid(name, false) {
			t.Errorf("IsValid(%q) = true, want false", name)
		}
	}

	// Containing a reserved name, or a different case, is fine.
	for _, name := range []string{"CONTOSO", "my CON", "con", "Desktop.ini", "COM10"} {
		if !rs.IsValid(name, false) {
			t.Errorf("IsValid(%q) = false, want true", name)
		}
	}
}

func TestSharePointNames_RootOnlyNames(t *testing.T) {
	rs := domain.SharePointNames

	if rs.IsValid("forms", true) {
		t.Error(`IsValid("forms", root) = true, want false`)
	}
	if !rs.IsValid("forms", false) {
		t.Error(`IsValid("forms", nested) = false, want true`)
	}
	if !rs.IsValid("forms2", true) {
		t.Error(`IsValid("forms2", root) = false, want true`)
	}
}

func TestSharePointNames_EmptyString(t *testing.T) {
	if !domain.SharePointNames.IsValid("", false) {
		t.Error(`IsValid("") = false, want true`)
	}

	rs := newRuleSet(t, domain.NamingRules{DisallowedExactNames: []string{""}})
	if rs.IsValid("", false) {
		t.Error(`IsValid("") with "" reserved = true, want false`)
	}
	if !rs.IsValid("x", false) {
		t.Error(`IsValid("x") = false, want true`)
	}
}

func TestNamingRuleSet_FailsClosed(t *testing.T) {
	if _, err := domain.NewNamingRuleSet(domain.NamingRules{}); !errors.Is(err, domain.ErrEmptyNamingRules) {
		t.Errorf("err = %v, want ErrEmptyNamingRules", err)
	}

	var zero domain.NamingRuleSet
	if zero.IsValid("anything", false) {
		t.Error("zero rule set accepted a name")
	}

	var nilSet *domain.NamingRuleSet
	if nilSet.IsValid("anything", false) {
		t.Error("nil rule set accepted a name")
	}
	if err := nilSet.Validate("name", "anything", false); err == nil {
		t.Error("nil rule set Validate = nil, want error")
	}
}

func TestNewNamingRuleSet_Malformed(t *testing.T) {
	if _, err := domain.NewNamingRuleSet(domain.NamingRules{DisallowedPrefixes: []string{"("}}); err == nil {
		t.Error("unbalanced prefix pattern: expected error")
	}
	if _, err := domain.NewNamingRuleSet(domain.NamingRules{DisallowedCharacters: []string{"ab"}}); err == nil {
		t.Error("multi-character entry: expected error")
	}
}

func TestNamingRuleSet_CharacterClassEscaping(t *testing.T) {
	rs := newRuleSet(t, domain.NamingRules{DisallowedCharacters: []string{"-", "]", "^", "a"}})

	for _, name := range []string{"x-y", "x]", "^x", "bab"} {
		if rs.IsValid(name, false) {
			t.Errorf("IsValid(%q) = true, want false", name)
		}
	}
	for _, name := range []string{"xyz", "b.c", "[b"} {
		if !rs.IsValid(name, false) {
			t.Errorf("IsValid(%q) = false, want true", name)
		}
	}
}

func TestNamingRuleSet_ExactNameAlsoSubstring(t *testing.T) {
	rs := newRuleSet(t, domain.NamingRules{
		DisallowedExactNames: []string{"CON"},
		DisallowedSubstrings: []string{"CON"},
	})

	for _, name := range []string{"CON", "CONTOSO"} {
		if rs.IsValid(name, false) {
			t.Errorf("IsValid(%q) = true, want false", name)
		}
	}
}

func TestNamingRuleSet_Violations(t *testing.T) {
	got := domain.SharePointNames.Violations("~$a:b ", false)
	want := []domain.NamingCategory{domain.CategoryPrefix, domain.CategorySuffix, domain.CategoryCharacter}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Violations = %v, want %v", got, want)
	}

	if got := domain.SharePointNames.Violations("Acme", true); len(got) != 0 {
		t.Errorf("Violations(%q) = %v, want none", "Acme", got)
	}
}

func TestNamingRuleSet_Validate(t *testing.T) {
	err := domain.SharePointNames.Validate("buyerName", "forms", true)

	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if vErr.Field != "buyerName" {
		t.Errorf("Field = %q, want %q", vErr.Field, "buyerName")
	}
	if !strings.Contains(vErr.Message, "top level") {
		t.Errorf("Message = %q, want it to mention the top level", vErr.Message)
	}

	if err := domain.SharePointNames.Validate("buyerName", "Acme Corp", true); err != nil {
		t.Errorf("Validate(%q) = %v, want nil", "Acme Corp", err)
	}
}

func TestNamingRuleSet_Pattern(t *testing.T) {
	rs := newRuleSet(t, domain.NamingRules{
		DisallowedPrefixes:      []string{`~\$`},
		DisallowedSuffixes:      []string{`\.`},
		DisallowedCharacters:    []string{`:`, `\`},
		DisallowedSubstrings:    []string{`_vti_`},
		DisallowedExactNames:    []string{`CON`, `NUL`},
		DisallowedRootOnlyNames: []string{`forms`},
	})

	want := `^(?!(?:~\$))(?!.*(?:\.)$)(?!.*(?:_vti_))(?!(?:CON|NUL)$)(?!.*[:\\]).*$`
	if got := rs.Pattern(false); got != want {
		t.Errorf("Pattern(false) = %q, want %q", got, want)
	}
	if got := rs.Pattern(true); !strings.Contains(got, `(?!(?:forms)$)`) {
		t.Errorf("Pattern(true) = %q, missing the root-only lookahead", got)
	}
}
