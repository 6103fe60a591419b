package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrEmptyNamingRules is returned when a rule set has no restrictions at all.
// An empty rule set would accept every name, so it is refused.
var ErrEmptyNamingRules = errors.New("naming rules: no restrictions configured")

// NamingCategory identifies one kind of naming restriction.
type NamingCategory string

const (
	CategoryPrefix    NamingCategory = "prefix"
	CategorySuffix    NamingCategory = "suffix"
	CategoryCharacter NamingCategory = "character"
	CategorySubstring NamingCategory = "substring"
	CategoryExactName NamingCategory = "exact_name"
	CategoryRootName  NamingCategory = "root_name"
)

// NamingRules lists pattern fragments per restriction category.
// Fragments are RE2 syntax; DisallowedCharacters holds single literal characters.
type NamingRules struct {
	DisallowedPrefixes      []string
	DisallowedSuffixes      []string
	DisallowedCharacters    []string
	DisallowedSubstrings    []string
	DisallowedExactNames    []string
	DisallowedRootOnlyNames []string
}

// SharePointNames are the restrictions the document service places on
// folder and site names.
var SharePointNames = MustNamingRuleSet(NamingRules{
	DisallowedPrefixes:   []string{`~\$`, ` `},
	DisallowedSuffixes:   []string{`\.`, ` `},
	DisallowedCharacters: []string{`"`, `*`, `:`, `<`, `>`, `?`, `/`, `\`, `|`},
	DisallowedSubstrings: []string{`_vti_`},
	DisallowedExactNames: []string{
		`\.lock`, `CON`, `PRN`, `AUX`, `NUL`, `COM[0-9]`, `LPT[0-9]`, `desktop\.ini`,
	},
	DisallowedRootOnlyNames: []string{`forms`},
})

type namingPredicate struct {
	category  NamingCategory
	matcher   *regexp.Regexp
	lookahead string
}

// NamingRuleSet evaluates candidate names against a fixed set of restrictions.
// It is immutable and safe for concurrent use.
type NamingRuleSet struct {
	predicates []namingPredicate
}

// NewNamingRuleSet compiles one predicate per non-empty category.
func NewNamingRuleSet(rules NamingRules) (*NamingRuleSet, error) {
	set := &NamingRuleSet{}

	groups := []struct {
		category  NamingCategory
		fragments []string
		match     string
		lookahead string
	}{
		{CategoryPrefix, rules.DisallowedPrefixes, `^(?:%s)`, `(?!(?:%s))`},
		{CategorySuffix, rules.DisallowedSuffixes, `(?:%s)$`, `(?!.*(?:%s)$)`},
		{CategorySubstring, rules.DisallowedSubstrings, `(?:%s)`, `(?!.*(?:%s))`},
		{CategoryExactName, rules.DisallowedExactNames, `^(?:%s)$`, `(?!(?:%s)$)`},
		{CategoryRootName, rules.DisallowedRootOnlyNames, `^(?:%s)$`, `(?!(?:%s)$)`},
	}

	for _, g := range groups {
		if len(g.fragments) == 0 {
			continue
		}
		for _, f := range g.fragments {
			if _, err := regexp.Compile(f); err != nil {
				return nil, fmt.Errorf("naming rules: %s fragment %q: %w", g.category, f, err)
			}
		}
		alternation := strings.Join(g.fragments, "|")
		matcher, err := regexp.Compile(fmt.Sprintf(g.match, alternation))
		if err != nil {
			return nil, fmt.Errorf("naming rules: %s: %w", g.category, err)
		}
		set.predicates = append(set.predicates, namingPredicate{
			category:  g.category,
			matcher:   matcher,
			lookahead: fmt.Sprintf(g.lookahead, alternation),
		})
	}

	if len(rules.DisallowedCharacters) > 0 {
		class, err := characterClass(rules.DisallowedCharacters)
		if err != nil {
			return nil, err
		}
		set.predicates = append(set.predicates, namingPredicate{
			category:  CategoryCharacter,
			matcher:   regexp.MustCompile(class),
			lookahead: `(?!.*` + class + `)`,
		})
	}

	if len(set.predicates) == 0 {
		return nil, ErrEmptyNamingRules
	}
	return set, nil
}

// MustNamingRuleSet is like NewNamingRuleSet but panics on error.
// Use it for package-level rule sets built from constants.
func MustNamingRuleSet(rules NamingRules) *NamingRuleSet {
	set, err := NewNamingRuleSet(rules)
	if err != nil {
		panic(err)
	}
	return set
}

func characterClass(chars []string) (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for _, c := range chars {
		if utf8.RuneCountInString(c) != 1 {
			return "", fmt.Errorf("naming rules: disallowed character %q must be a single character", c)
		}
		if strings.ContainsAny(c, `\-]^[`) {
			b.WriteByte('\\')
			b.WriteString(c)
			continue
		}
		b.WriteString(regexp.QuoteMeta(c))
	}
	b.WriteByte(']')
	return b.String(), nil
}

// IsValid reports whether candidate passes every restriction. Root-only
// names are checked only when root is true. A nil or zero-value rule set
// rejects everything.
func (s *NamingRuleSet) IsValid(candidate string, root bool) bool {
	if s == nil || len(s.predicates) == 0 {
		return false
	}
	return len(s.Violations(candidate, root)) == 0
}

// Violations returns the categories candidate fails, in rule order.
func (s *NamingRuleSet) Violations(candidate string, root bool) []NamingCategory {
	if s == nil {
		return nil
	}
	var out []NamingCategory
	for _, p := range s.predicates {
		if p.category == CategoryRootName && !root {
			continue
		}
		if p.matcher.MatchString(candidate) {
			out = append(out, p.category)
		}
	}
	return out
}

// Validate returns a *ValidationError describing the first failed category.
func (s *NamingRuleSet) Validate(field, candidate string, root bool) error {
	if s == nil || len(s.predicates) == 0 {
		return &ValidationError{Field: field, Message: "no naming rules configured"}
	}
	violations := s.Violations(candidate, root)
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Field: field, Message: violationMessages[violations[0]]}
}

var violationMessages = map[NamingCategory]string{
	CategoryPrefix:    "must not start with a reserved prefix",
	CategorySuffix:    "must not end with a reserved suffix",
	CategoryCharacter: "must not contain any of the characters \" * : < > ? / \\ |",
	CategorySubstring: "must not contain a reserved sequence",
	CategoryExactName: "must not be a reserved name",
	CategoryRootName:  "must not be a name reserved at the top level",
}

// Pattern renders the rule set as one anchored regular expression made of
// negative lookaheads. Go's regexp package cannot compile it; it is
// published for clients validating with a backtracking engine.
func (s *NamingRuleSet) Pattern(root bool) string {
	var b strings.Builder
	b.WriteByte('^')
	if s != nil {
		for _, p := range s.predicates {
			if p.category == CategoryRootName && !root {
				continue
			}
			b.WriteString(p.lookahead)
		}
	}
	b.WriteString(".*$")
	return b.String()
}
