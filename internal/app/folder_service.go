package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// FolderResult describes a folder-creation request accepted by the
// provisioning service.
type FolderResult struct {
	Name     string
	CacheKey string
	State    domain.FolderJobState
	// Created is false when the folder already existed.
	Created bool
}

// DealFolder is the input for a deal folder.
type DealFolder struct {
	DealID            string
	BuyerName         string
	DestinationMarket string
	RiskMarket        string
}

// FacilityFolder is the input for a facility folder.
type FacilityFolder struct {
	FacilityID string
	BuyerName  string
}

// FolderService creates buyer, deal and facility folders.
type FolderService struct {
	lookup        *Lookup
	provisioner   *FolderProvisioner
	jobs          domain.FolderJobRepository
	lists         Lists
	documentTypes map[domain.DocumentType]domain.DocumentTypeInfo
}

// NewFolderService creates a FolderService. documentTypes is attached to
// every facility folder.
func NewFolderService(
	directory domain.Directory,
	provisioner *FolderProvisioner,
	jobs domain.FolderJobRepository,
	lists Lists,
	documentTypes map[domain.DocumentType]domain.DocumentTypeInfo,
) *FolderService {
	return &FolderService{
		lookup:        NewLookup(directory),
		provisioner:   provisioner,
		jobs:          jobs,
		lists:         lists,
		documentTypes: documentTypes,
	}
}

// CreateBuyerFolder creates buyerName at the top of the site's case library.
func (s *FolderService) CreateBuyerFolder(ctx context.Context, siteID, buyerName string) (FolderResult, error) {
	site, err := s.lookup.FindByKey(ctx, s.lists.siteByID(siteID), domain.SiteKey(siteID),
		domain.FieldID, domain.FieldTermGuid)
	if err != nil {
		return FolderResult{}, err
	}

	return s.create(ctx, domain.FolderCreationRequest{
		ParentFolderID: site.ID,
		FolderName:     buyerName,
		Metadata: map[string]string{
			"ExporterTermGuid": site.TermGuid,
			"SiteId":           siteID,
		},
	})
}

// CreateDealFolder creates "D <dealID>" inside the buyer's folder. An
// existing deal folder is a *domain.ConflictError.
func (s *FolderService) CreateDealFolder(ctx context.Context, siteID string, in DealFolder) (FolderResult, error) {
	site, err := s.lookup.FindByKey(ctx, s.lists.siteByID(siteID), domain.SiteKey(siteID),
		domain.FieldID, domain.FieldTermGuid)
	if err != nil {
		return FolderResult{}, err
	}

	buyer, err := s.lookup.FindByKey(ctx, s.lists.folder(siteID, in.BuyerName), domain.BuyerKey(in.BuyerName), domain.FieldID)
	if err != nil {
		return FolderResult{}, err
	}

	name := DealFolderName(in.DealID)
	exists, err := s.lookup.Exists(ctx, s.lists.folder(siteID, name))
	if err != nil {
		return FolderResult{}, err
	}
	if exists {
		return FolderResult{}, &domain.ConflictError{
			Message: fmt.Sprintf("Deal folder %s already exists in site %s.", name, siteID),
		}
	}

	destination, err := s.lookup.FindByKey(ctx, s.lists.marketTerm(in.DestinationMarket),
		domain.MarketKey(in.DestinationMarket), domain.FieldTermGuid)
	if err != nil {
		return FolderResult{}, err
	}
	risk, err := s.lookup.FindByKey(ctx, s.lists.marketTerm(in.RiskMarket),
		domain.MarketKey(in.RiskMarket), domain.FieldTermGuid)
	if err != nil {
		return FolderResult{}, err
	}

	return s.create(ctx, domain.FolderCreationRequest{
		ParentFolderID: buyer.ID,
		FolderName:     name,
		Metadata: map[string]string{
			"ExporterTermGuid":          site.TermGuid,
			"BuyerName":                 in.BuyerName,
			"DestinationMarketTermGuid": destination.TermGuid,
			"RiskMarketTermGuid":        risk.TermGuid,
		},
	})
}

// CreateFacilityFolder creates "F <facilityID>" inside the deal's folder,
// carrying the configured document types.
func (s *FolderService) CreateFacilityFolder(ctx context.Context, siteID, dealID string, in FacilityFolder) (FolderResult, error) {
	deal, err := s.lookup.FindByKey(ctx, s.lists.folder(siteID, DealFolderName(dealID)), domain.DealKey(dealID), domain.FieldID)
	if err != nil {
		return FolderResult{}, err
	}

	return s.create(ctx, domain.FolderCreationRequest{
		ParentFolderID:       deal.ID,
		FolderName:           FacilityFolderName(in.FacilityID),
		DocumentTypeMetadata: s.documentTypes,
		Metadata: map[string]string{
			"BuyerName":      in.BuyerName,
			"DealIdentifier": dealID,
		},
	})
}

// GetFolderJob returns the last observed state of a submitted job.
func (s *FolderService) GetFolderJob(ctx context.Context, cacheKey string) (domain.FolderJob, error) {
	job, err := s.jobs.Get(ctx, cacheKey)
	if errors.Is(err, domain.ErrFolderJobNotFound) {
		return domain.FolderJob{}, &domain.NotFoundError{Key: domain.FolderJobKey(cacheKey), Source: "folder job ledger", Cause: err}
	}
	if err != nil {
		return domain.FolderJob{}, fmt.Errorf("reading folder job: %w", err)
	}
	return job, nil
}

func (s *FolderService) create(ctx context.Context, req domain.FolderCreationRequest) (FolderResult, error) {
	outcome, err := s.provisioner.CreateFolder(ctx, req)
	if err != nil {
		return FolderResult{}, err
	}
	return FolderResult{
		Name:     req.FolderName,
		CacheKey: outcome.CacheKey,
		State:    outcome.State,
		Created:  outcome.Kind == domain.OutcomeSucceeded,
	}, nil
}
