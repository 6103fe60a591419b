package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// internalMessage is the only message a 500 response ever carries.
const internalMessage = "Internal server error"

// ErrorResponse is the body of every error response. Message is a string,
// or a list of strings for input validation failures.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode" doc:"HTTP status code"`
	Message    any    `json:"message" doc:"Error message, or one message per invalid field"`
	Reason     string `json:"error" doc:"HTTP reason phrase"`
}

func (e *ErrorResponse) Error() string {
	if msgs, ok := e.Message.([]string); ok {
		return strings.Join(msgs, "; ")
	}
	msg, _ := e.Message.(string)
	return msg
}

// GetStatus implements huma.StatusError.
func (e *ErrorResponse) GetStatus() int { return e.StatusCode }

// ContentType serves errors as plain JSON rather than problem+json.
func (e *ErrorResponse) ContentType(ct string) string {
	if ct == "application/problem+json" {
		return "application/json"
	}
	return ct
}

func newErrorResponse(status int, message any) *ErrorResponse {
	return &ErrorResponse{StatusCode: status, Message: message, Reason: http.StatusText(status)}
}

func init() {
	huma.NewError = newError
}

// newError replaces huma's default error constructor. Request validation
// failures become 400 with one message per field; server errors never
// expose their detail.
func newError(status int, msg string, errs ...error) huma.StatusError {
	switch {
	case status == http.StatusUnprocessableEntity || (status == http.StatusBadRequest && len(errs) > 0):
		return newErrorResponse(http.StatusBadRequest, detailMessages(msg, errs))
	case status >= http.StatusInternalServerError:
		return newErrorResponse(status, internalMessage)
	default:
		return newErrorResponse(status, msg)
	}
}

func detailMessages(fallback string, errs []error) []string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			msgs = append(msgs, fieldName(detail.Location)+" "+detail.Message)
			continue
		}
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, fallback)
	}
	return msgs
}

// fieldName strips the "body." / "path." / "query." location prefix.
func fieldName(location string) string {
	if i := strings.IndexByte(location, '.'); i >= 0 {
		return location[i+1:]
	}
	return location
}

// toHumaError is the single place domain errors become HTTP responses.
// Client-caused conditions are 400 with a message naming the natural key;
// everything else is logged and answered with a generic 500.
func toHumaError(ctx context.Context, err error) error {
	var statusErr huma.StatusError
	if errors.As(err, &statusErr) {
		return statusErr
	}

	var validation *domain.ValidationError
	var validations domain.ValidationErrors
	var notFound *domain.NotFoundError
	var conflict *domain.ConflictError
	var noSite *domain.SiteNotFoundForUploadError

	// SiteNotFoundForUploadError wraps a NotFoundError, so it goes first.
	switch {
	case errors.As(err, &noSite):
		return newErrorResponse(http.StatusBadRequest, noSite.Error())
	case errors.As(err, &validations):
		msgs := make([]string, len(validations))
		for i, v := range validations {
			msgs[i] = v.Error()
		}
		return newErrorResponse(http.StatusBadRequest, msgs)
	case errors.As(err, &validation):
		return newErrorResponse(http.StatusBadRequest, []string{validation.Error()})
	case errors.As(err, &notFound):
		return newErrorResponse(http.StatusBadRequest, notFound.Error())
	case errors.As(err, &conflict):
		return newErrorResponse(http.StatusBadRequest, conflict.Error())
	}

	slog.ErrorContext(ctx, "request failed", "error", err, "kind", errorKind(err))
	return newErrorResponse(http.StatusInternalServerError, internalMessage)
}

// errorKind names the error family for the log line behind a 500.
func errorKind(err error) string {
	var integrity *domain.DataIntegrityError
	var failure *domain.UpstreamFailureError
	var upstream *domain.UpstreamError
	var enum *domain.EnumConversionError
	switch {
	case errors.As(err, &integrity):
		return "data_integrity"
	case errors.As(err, &failure):
		if failure.Timeout {
			return "upstream_timeout"
		}
		return "upstream_failure"
	case errors.As(err, &upstream):
		return "upstream"
	case errors.As(err, &enum):
		return "enum_conversion"
	default:
		return "unknown"
	}
}
