package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// TermService registers facility terms.
type TermService struct {
	directory domain.Directory
	lists     Lists
}

// NewTermService creates a TermService.
func NewTermService(directory domain.Directory, lists Lists) *TermService {
	return &TermService{directory: directory, lists: lists}
}

// CreateFacilityTerm adds facilityID to the facility term list. created is
// false when the term was already there.
func (s *TermService) CreateFacilityTerm(ctx context.Context, facilityID string) (created bool, err error) {
	_, err = s.directory.CreateListItem(ctx, domain.ListItemCreate{
		Site:   s.lists.TfisSite,
		List:   s.lists.FacilityTermsList,
		Fields: map[string]any{string(domain.FieldTitle): facilityID},
	})
	switch {
	case err == nil:
		return true, nil
	case termExists(err):
		slog.InfoContext(ctx, "facility term already exists", "facility_id", facilityID)
		return false, nil
	default:
		return false, &domain.UpstreamFailureError{
			Service: domain.ServiceDirectory, Operation: "create facility term", Timeout: domain.IsTimeout(err), Cause: err,
		}
	}
}

// termExists recognises the directory's duplicate-term rejection.
func termExists(err error) bool {
	var up *domain.UpstreamError
	if !errors.As(err, &up) || up.Code != domain.CodeInvalidRequest {
		return false
	}
	msg := strings.ToLower(up.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "must be unique")
}
