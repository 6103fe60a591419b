package app

import "github.com/neomorfeo/dmgateway/internal/domain"

// Display names of the directory lists, used in client messages.
const (
	CaseSitesListName     = "tfisCaseSitesList"
	MarketTermsListName   = "tfisMarketTermList"
	FacilityTermsListName = "tfisFacilityList"
	CaseLibraryName       = "Case Library"
)

// Lists locates the directory lists the services read and write.
type Lists struct {
	// TfisSite hosts the shared case-site, market and facility term lists.
	TfisSite          string
	CaseSitesList     string
	MarketTermsList   string
	FacilityTermsList string
	// CaseLibrary is the folder library inside every exporter site.
	CaseLibrary string
}

func (l Lists) caseSites(filter string) domain.ListQuery {
	return domain.ListQuery{
		Site:   l.TfisSite,
		List:   l.CaseSitesList,
		Name:   CaseSitesListName,
		Filter: filter,
		Expand: "fields",
	}
}

func (l Lists) siteByID(siteID string) domain.ListQuery {
	return l.caseSites(fieldEq(domain.FieldURL, siteID))
}

func (l Lists) siteByExporter(name string) domain.ListQuery {
	return l.caseSites(fieldEq(domain.FieldTitle, name))
}

func (l Lists) marketTerm(market string) domain.ListQuery {
	return domain.ListQuery{
		Site:   l.TfisSite,
		List:   l.MarketTermsList,
		Name:   MarketTermsListName,
		Filter: fieldEq(domain.FieldTitle, market),
		Expand: "fields",
	}
}

func (l Lists) folder(siteID, title string) domain.ListQuery {
	return domain.ListQuery{
		Site:   siteID,
		List:   l.CaseLibrary,
		Name:   CaseLibraryName,
		Filter: fieldEq(domain.FieldTitle, title),
		Expand: "fields",
	}
}

// DealFolderName is the folder name used for a deal.
func DealFolderName(dealID string) string { return "D " + dealID }

// FacilityFolderName is the folder name used for a facility.
func FacilityFolderName(facilityID string) string { return "F " + facilityID }
