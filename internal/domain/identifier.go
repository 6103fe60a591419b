package domain

import (
	"regexp"
	"strings"
)

// Environment is the deployment stage the gateway serves.
type Environment string

const (
	EnvironmentDev  Environment = "dev"
	EnvironmentQA   Environment = "qa"
	EnvironmentProd Environment = "prod"
)

// Environments lists every supported deployment stage.
var Environments = []Environment{EnvironmentDev, EnvironmentQA, EnvironmentProd}

// IDKind selects which identifier format to check.
type IDKind string

const (
	IDKindSite     IDKind = "site"
	IDKindTenDigit IDKind = "ten_digit"
)

// Identifier formats. Site IDs share one location prefix in every
// environment; ten-digit deal and facility IDs only fix the leading "00".
const (
	SiteIDPrefix      = "0070"
	SiteIDPattern     = `^0070\d{4}$`
	TenDigitIDPattern = `^00\d{8}$`
)

var (
	siteIDRe     = regexp.MustCompile(SiteIDPattern)
	tenDigitIDRe = regexp.MustCompile(TenDigitIDPattern)
)

// tenDigitPrefixes are the number ranges the numbering service hands out
// per environment.
var tenDigitPrefixes = map[Environment]string{
	EnvironmentDev:  "0030",
	EnvironmentQA:   "0040",
	EnvironmentProd: "0020",
}

// IDFormatValidator checks identifier formats for one environment.
type IDFormatValidator struct {
	env    Environment
	prefix string
}

// NewIDFormatValidator returns a validator bound to env.
func NewIDFormatValidator(env Environment) (*IDFormatValidator, error) {
	env, err := Coerce(env, Environments)
	if err != nil {
		return nil, err
	}
	return &IDFormatValidator{env: env, prefix: tenDigitPrefixes[env]}, nil
}

// Environment returns the environment the validator was built for.
func (v *IDFormatValidator) Environment() Environment { return v.env }

// TenDigitPrefix returns the environment's ten-digit ID prefix.
func (v *IDFormatValidator) TenDigitPrefix() string { return v.prefix }

// Matches reports whether candidate has the format of kind.
// The environment prefix is not part of the check.
func (v *IDFormatValidator) Matches(candidate string, kind IDKind) bool {
	switch kind {
	case IDKindSite:
		return siteIDRe.MatchString(candidate)
	case IDKindTenDigit:
		return tenDigitIDRe.MatchString(candidate)
	default:
		return false
	}
}

// PrefixMismatch reports a well-formed ten-digit ID that was not issued
// from this environment's range. Callers log it; it is not a validation
// failure.
func (v *IDFormatValidator) PrefixMismatch(candidate string) bool {
	return tenDigitIDRe.MatchString(candidate) && !strings.HasPrefix(candidate, v.prefix)
}

// Validate returns a *ValidationError when candidate does not match kind.
func (v *IDFormatValidator) Validate(field, candidate string, kind IDKind) error {
	if v.Matches(candidate, kind) {
		return nil
	}
	pattern := TenDigitIDPattern
	if kind == IDKindSite {
		pattern = SiteIDPattern
	}
	return &ValidationError{Field: field, Message: "must match pattern " + pattern}
}

// MatchesID is the stateless form of IDFormatValidator.Matches.
func MatchesID(candidate string, kind IDKind, env Environment) bool {
	v, err := NewIDFormatValidator(env)
	if err != nil {
		return false
	}
	return v.Matches(candidate, kind)
}
