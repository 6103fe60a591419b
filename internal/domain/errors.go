package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrFolderJobNotFound = errors.New("folder job not found")
)

// Upstream error codes the translation layer and orchestrators care about.
const (
	CodeCredentialUnavailable  = "CredentialUnavailableError"
	CodeAuthenticationRequired = "AuthenticationRequiredError"
	CodeInvalidRequest         = "invalidRequest"
	CodeAlreadyExists          = "AlreadyExists"
)

// ValidationError is returned when client input is malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// ValidationErrors collects several input failures.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// NotFoundError is returned when a natural key resolves to no upstream record.
type NotFoundError struct {
	Key    ResourceKey
	Source string
	Cause  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Did not find the %s in the %s.", e.Key.Describe(), e.Source)
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// SiteNotFoundForUploadError is returned when a document targets a site
// that does not exist.
type SiteNotFoundForUploadError struct {
	SiteID   string
	FileName string
	Cause    error
}

func (e *SiteNotFoundForUploadError) Error() string {
	return fmt.Sprintf("Site %s does not exist, cannot upload file %s.", e.SiteID, e.FileName)
}

func (e *SiteNotFoundForUploadError) Unwrap() error { return e.Cause }

// ConflictError is returned when the target resource already exists.
type ConflictError struct {
	Message string
	Cause   error
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return e.Cause }

// DataIntegrityError is returned when an upstream record is malformed.
type DataIntegrityError struct {
	Source string
	Field  string
	Reason string
	Cause  error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("malformed record from %s: field %q %s", e.Source, e.Field, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error { return e.Cause }

// UpstreamFailureError is returned when a back-end call fails, times out,
// or cannot authenticate.
type UpstreamFailureError struct {
	Service   string
	Operation string
	Timeout   bool
	Cause     error
}

func (e *UpstreamFailureError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s %s %s", e.Service, e.Operation, kind)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Service, e.Operation, kind, e.Cause)
}

func (e *UpstreamFailureError) Unwrap() error { return e.Cause }

// UpstreamError is the raw failure reported by a back-end client.
type UpstreamError struct {
	Service    string
	StatusCode int
	Code       string
	Message    string
	Timeout    bool
	Cause      error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " returned %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// IsTimeout reports whether err is an upstream or context deadline timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var up *UpstreamError
	return errors.As(err, &up) && up.Timeout
}

// IsAlreadyExists reports whether a back end said the target exists.
func IsAlreadyExists(err error) bool {
	var up *UpstreamError
	if !errors.As(err, &up) {
		return false
	}
	return up.Code == CodeAlreadyExists || up.StatusCode == 409
}

// TransitionError is returned when a folder job state change is not allowed.
type TransitionError struct {
	Event   FolderJobEvent
	Current FolderJobState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// EnumConversionError is returned when a value is not a member of an enum.
type EnumConversionError struct {
	Value any
	Enum  string
}

func (e *EnumConversionError) Error() string {
	return fmt.Sprintf("value %v (%T) is not a valid %s", e.Value, e.Value, e.Enum)
}
