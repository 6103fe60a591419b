package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// SiteNumberType is the numbering-service type that mints site IDs.
const SiteNumberType = 6

// Site is an exporter's site and its provisioning status.
type Site struct {
	SiteID string
	Status domain.SiteStatus
}

// SiteService reads and requests exporter sites.
type SiteService struct {
	lookup    *Lookup
	directory domain.Directory
	numbering domain.NumberingService
	ids       *domain.IDFormatValidator
	lists     Lists
	requester string
}

// NewSiteService creates a SiteService. requester identifies this system to
// the numbering service.
func NewSiteService(directory domain.Directory, numbering domain.NumberingService, ids *domain.IDFormatValidator, lists Lists, requester string) *SiteService {
	return &SiteService{
		lookup:    NewLookup(directory),
		directory: directory,
		numbering: numbering,
		ids:       ids,
		lists:     lists,
		requester: requester,
	}
}

// GetSite returns the site registered for exporterName.
func (s *SiteService) GetSite(ctx context.Context, exporterName string) (Site, error) {
	rec, err := s.lookup.FindByKey(ctx, s.lists.siteByExporter(exporterName), domain.ExporterKey(exporterName),
		domain.FieldURL, domain.FieldSiteStatus)
	if err != nil {
		return Site{}, err
	}
	return Site{SiteID: rec.URL, Status: rec.Status}, nil
}

// CreateSite returns the exporter's existing site, or mints a site ID and
// registers the site for provisioning. created is true in the second case.
func (s *SiteService) CreateSite(ctx context.Context, exporterName string) (site Site, created bool, err error) {
	site, err = s.GetSite(ctx, exporterName)
	if err == nil {
		return site, false, nil
	}
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		return Site{}, false, err
	}

	siteID, err := s.mintSiteID(ctx)
	if err != nil {
		return Site{}, false, err
	}

	_, err = s.directory.CreateListItem(ctx, domain.ListItemCreate{
		Site: s.lists.TfisSite,
		List: s.lists.CaseSitesList,
		Fields: map[string]any{
			string(domain.FieldTitle):      exporterName,
			string(domain.FieldURL):        siteID,
			string(domain.FieldSiteStatus): string(domain.SiteStatusProvisioning),
		},
	})
	if err != nil {
		return Site{}, false, &domain.UpstreamFailureError{
			Service: domain.ServiceDirectory, Operation: "register site", Timeout: domain.IsTimeout(err), Cause: err,
		}
	}

	slog.InfoContext(ctx, "site provisioning requested", "site_id", siteID, "exporter", exporterName)
	return Site{SiteID: siteID, Status: domain.SiteStatusProvisioning}, true, nil
}

func (s *SiteService) mintSiteID(ctx context.Context) (string, error) {
	numbers, err := s.numbering.GenerateNumbers(ctx, domain.NumberRequest{
		NumberTypeID:     SiteNumberType,
		CreatedBy:        s.requester,
		RequestingSystem: s.requester,
		Count:            1,
	})
	if err != nil {
		return "", &domain.UpstreamFailureError{
			Service: domain.ServiceNumbering, Operation: "generate site id", Timeout: domain.IsTimeout(err), Cause: err,
		}
	}
	if len(numbers) == 0 {
		return "", &domain.DataIntegrityError{Source: domain.ServiceNumbering, Field: "maskedId", Reason: "is missing"}
	}
	siteID := numbers[0].MaskedID
	if !s.ids.Matches(siteID, domain.IDKindSite) {
		return "", &domain.DataIntegrityError{
			Source: domain.ServiceNumbering, Field: "maskedId", Reason: fmt.Sprintf("%q is not a site ID", siteID),
		}
	}
	return siteID, nil
}
