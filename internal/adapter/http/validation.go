package http

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// names is the rule set every folder, site and file name must satisfy.
var names = domain.SharePointNames

// checkName reports a naming violation for the field at location.
// Root-level names also exclude the names reserved at the top of a library.
func checkName(location, value string, root bool) []error {
	var ve *domain.ValidationError
	if !errors.As(names.Validate(fieldName(location), value, root), &ve) {
		return nil
	}
	return []error{&huma.ErrorDetail{
		Location: location,
		Message:  ve.Message,
		Value:    value,
	}}
}

func (i *GetSiteInput) Resolve(huma.Context) []error {
	return checkName("query.exporterName", i.ExporterName, false)
}

func (i *CreateSiteInput) Resolve(huma.Context) []error {
	return checkName("body.exporterName", i.Body.ExporterName, false)
}

func (i *CreateBuyerFolderInput) Resolve(huma.Context) []error {
	return checkName("body.buyerName", i.Body.BuyerName, true)
}

func (i *CreateDealFolderInput) Resolve(huma.Context) []error {
	var errs []error
	errs = append(errs, checkName("body.buyerName", i.Body.BuyerName, true)...)
	errs = append(errs, checkName("body.destinationMarket", i.Body.DestinationMarket, false)...)
	errs = append(errs, checkName("body.riskMarket", i.Body.RiskMarket, false)...)
	return errs
}

func (i *CreateFacilityFolderInput) Resolve(huma.Context) []error {
	return checkName("body.buyerName", i.Body.BuyerName, true)
}

func (i *UploadDocumentInput) Resolve(huma.Context) []error {
	var errs []error
	errs = append(errs, checkName("body.buyerName", i.Body.BuyerName, true)...)
	errs = append(errs, checkName("body.fileName", i.Body.FileName, false)...)
	return errs
}

// Compile-time checks: inputs run the naming rules after schema validation.
var (
	_ huma.Resolver = (*GetSiteInput)(nil)
	_ huma.Resolver = (*CreateSiteInput)(nil)
	_ huma.Resolver = (*CreateBuyerFolderInput)(nil)
	_ huma.Resolver = (*CreateDealFolderInput)(nil)
	_ huma.Resolver = (*CreateFacilityFolderInput)(nil)
	_ huma.Resolver = (*UploadDocumentInput)(nil)
)
