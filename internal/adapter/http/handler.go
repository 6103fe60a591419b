// Package http exposes the gateway's operations as a huma API.
package http

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/dmgateway/internal/app"
	"github.com/neomorfeo/dmgateway/internal/domain"
)

// APIKeyHeader carries the static key required by mutating operations.
const APIKeyHeader = "x-api-key"

const securityScheme = "apiKey"

// Services are the application services behind the API.
type Services struct {
	Sites     *app.SiteService
	Folders   *app.FolderService
	Terms     *app.TermService
	Documents *app.DocumentService
}

// Options configures request checks.
type Options struct {
	// APIKey is compared with the x-api-key header. An empty key rejects
	// every mutating request.
	APIKey string
	// IDs flags ten-digit identifiers issued from another environment.
	IDs *domain.IDFormatValidator
}

// --- Sites ---

// SiteResponse is an exporter's site.
type SiteResponse struct {
	SiteID string `json:"siteId" doc:"Eight-digit site identifier"`
	Status string `json:"status" doc:"Provisioning status" enum:"Provisioning,Created,Failed"`
}

type GetSiteInput struct {
	ExporterName string `query:"exporterName" required:"true" minLength:"1" maxLength:"255" doc:"Exporter name"`
}

type CreateSiteInput struct {
	Body struct {
		ExporterName string `json:"exporterName" minLength:"1" maxLength:"255" doc:"Exporter name"`
	}
}

type SiteOutput struct {
	Status int
	Body   SiteResponse
}

// --- Folders ---

// FolderResponse describes a folder-creation request.
type FolderResponse struct {
	Name     string `json:"name" doc:"Folder name"`
	CacheKey string `json:"cacheKey" doc:"Key for polling the folder job"`
	Status   string `json:"status" doc:"Folder job state"`
}

type CreateBuyerFolderInput struct {
	SiteID string `path:"siteId" pattern:"^0070\\d{4}$" doc:"Site identifier"`
	Body   struct {
		BuyerName string `json:"buyerName" minLength:"1" maxLength:"255" doc:"Buyer name"`
	}
}

type CreateDealFolderInput struct {
	SiteID string `path:"siteId" pattern:"^0070\\d{4}$" doc:"Site identifier"`
	Body   struct {
		DealIdentifier    string `json:"dealIdentifier" pattern:"^00\\d{8}$" doc:"Ten-digit deal identifier"`
		BuyerName         string `json:"buyerName" minLength:"1" maxLength:"255" doc:"Buyer folder the deal belongs to"`
		DestinationMarket string `json:"destinationMarket" minLength:"1" doc:"Destination market name"`
		RiskMarket        string `json:"riskMarket" minLength:"1" doc:"Risk market name"`
	}
}

type CreateFacilityFolderInput struct {
	SiteID string `path:"siteId" pattern:"^0070\\d{4}$" doc:"Site identifier"`
	DealID string `path:"dealId" pattern:"^00\\d{8}$" doc:"Ten-digit deal identifier"`
	Body   struct {
		FacilityIdentifier string `json:"facilityIdentifier" pattern:"^00\\d{8}$" doc:"Ten-digit facility identifier"`
		BuyerName          string `json:"buyerName" minLength:"1" maxLength:"255" doc:"Buyer name"`
	}
}

type FolderOutput struct {
	Status int
	Body   FolderResponse
}

func toFolderOutput(r app.FolderResult) *FolderOutput {
	status := http.StatusOK
	if r.Created {
		status = http.StatusCreated
	}
	return &FolderOutput{
		Status: status,
		Body:   FolderResponse{Name: r.Name, CacheKey: r.CacheKey, Status: string(r.State)},
	}
}

// --- Folder jobs ---

// FolderJobResponse is the last observed state of a folder job.
type FolderJobResponse struct {
	CacheKey       string `json:"cacheKey"`
	ParentFolderID int64  `json:"parentFolderId"`
	FolderName     string `json:"folderName"`
	JobID          string `json:"jobId"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt" doc:"Submission timestamp (ISO 8601)"`
	UpdatedAt      string `json:"updatedAt" doc:"Last state change (ISO 8601)"`
}

type GetFolderJobInput struct {
	CacheKey string `path:"cacheKey" pattern:"^\\d+-[0-9a-f]{32}$" doc:"Cache key returned when the folder was requested"`
}

type FolderJobOutput struct {
	Body FolderJobResponse
}

// --- Terms ---

type CreateFacilityTermInput struct {
	Body struct {
		ID string `json:"id" pattern:"^00\\d{8}$" doc:"Ten-digit facility identifier"`
	}
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

type MessageOutput struct {
	Status int
	Body   MessageResponse
}

// --- Documents ---

type UploadDocumentInput struct {
	SiteID string `path:"siteId" pattern:"^0070\\d{4}$" doc:"Site identifier"`
	Body   struct {
		DealIdentifier   string `json:"dealIdentifier" pattern:"^00\\d{8}$" doc:"Ten-digit deal identifier"`
		BuyerName        string `json:"buyerName" minLength:"1" maxLength:"255" doc:"Buyer folder the deal belongs to"`
		DocumentType     string `json:"documentType" enum:"Application,Financial Statement,Business Information,Correspondence,Legal Document" doc:"Document category"`
		FileName         string `json:"fileName" minLength:"1" maxLength:"255" doc:"Name of the staged file"`
		FileLocationPath string `json:"fileLocationPath" minLength:"1" doc:"Directory of the staged file in file storage"`
	}
}

// DocumentResponse locates an uploaded document.
type DocumentResponse struct {
	FileURL string `json:"fileUrl" doc:"URL of the uploaded document"`
}

type DocumentOutput struct {
	Status int
	Body   DocumentResponse
}

// Register adds all gateway routes to the Huma API.
func Register(api huma.API, svc Services, opts Options) {
	oapi := api.OpenAPI()
	if oapi.Components.SecuritySchemes == nil {
		oapi.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oapi.Components.SecuritySchemes[securityScheme] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: APIKeyHeader,
	}

	protected := huma.Middlewares{requireAPIKey(api, opts.APIKey)}
	security := []map[string][]string{{securityScheme: {}}}

	huma.Register(api, huma.Operation{
		OperationID: "get-site",
		Method:      http.MethodGet,
		Path:        "/api/v1/sites",
		Summary:     "Get the site of an exporter",
		Tags:        []string{"Sites"},
	}, func(ctx context.Context, input *GetSiteInput) (*SiteOutput, error) {
		site, err := svc.Sites.GetSite(ctx, input.ExporterName)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &SiteOutput{Status: http.StatusOK, Body: toSiteResponse(site)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-site",
		Method:        http.MethodPost,
		Path:          "/api/v1/sites",
		Summary:       "Request a site for an exporter",
		Description:   "Returns the existing site (200) or registers a new one for provisioning (202).",
		Tags:          []string{"Sites"},
		DefaultStatus: http.StatusAccepted,
		Security:      security,
		Middlewares:   protected,
	}, func(ctx context.Context, input *CreateSiteInput) (*SiteOutput, error) {
		site, created, err := svc.Sites.CreateSite(ctx, input.Body.ExporterName)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		status := http.StatusOK
		if created {
			status = http.StatusAccepted
		}
		return &SiteOutput{Status: status, Body: toSiteResponse(site)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-buyer-folder",
		Method:        http.MethodPost,
		Path:          "/api/v1/sites/{siteId}/buyers",
		Summary:       "Create a buyer folder",
		Description:   "Buyer names must match " + names.Pattern(true),
		Tags:          []string{"Folders"},
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Middlewares:   protected,
	}, func(ctx context.Context, input *CreateBuyerFolderInput) (*FolderOutput, error) {
		res, err := svc.Folders.CreateBuyerFolder(ctx, input.SiteID, input.Body.BuyerName)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return toFolderOutput(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-deal-folder",
		Method:        http.MethodPost,
		Path:          "/api/v1/sites/{siteId}/deals",
		Summary:       "Create a deal folder",
		Tags:          []string{"Folders"},
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Middlewares:   protected,
	}, func(ctx context.Context, input *CreateDealFolderInput) (*FolderOutput, error) {
		warnForeignID(ctx, opts.IDs, "dealIdentifier", input.Body.DealIdentifier)
		res, err := svc.Folders.CreateDealFolder(ctx, input.SiteID, app.DealFolder{
			DealID:            input.Body.DealIdentifier,
			BuyerName:         input.Body.BuyerName,
			DestinationMarket: input.Body.DestinationMarket,
			RiskMarket:        input.Body.RiskMarket,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return toFolderOutput(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-facility-folder",
		Method:        http.MethodPost,
		Path:          "/api/v1/sites/{siteId}/deals/{dealId}/facilities",
		Summary:       "Create a facility folder",
		Tags:          []string{"Folders"},
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Middlewares:   protected,
	}, func(ctx context.Context, input *CreateFacilityFolderInput) (*FolderOutput, error) {
		warnForeignID(ctx, opts.IDs, "dealId", input.DealID)
		warnForeignID(ctx, opts.IDs, "facilityIdentifier", input.Body.FacilityIdentifier)
		res, err := svc.Folders.CreateFacilityFolder(ctx, input.SiteID, input.DealID, app.FacilityFolder{
			FacilityID: input.Body.FacilityIdentifier,
			BuyerName:  input.Body.BuyerName,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return toFolderOutput(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-folder-job",
		Method:      http.MethodGet,
		Path:        "/api/v1/folder-jobs/{cacheKey}",
		Summary:     "Get the last observed state of a folder job",
		Tags:        []string{"Folders"},
	}, func(ctx context.Context, input *GetFolderJobInput) (*FolderJobOutput, error) {
		job, err := svc.Folders.GetFolderJob(ctx, input.CacheKey)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &FolderJobOutput{Body: FolderJobResponse{
			CacheKey:       job.CacheKey,
			ParentFolderID: job.ParentFolderID,
			FolderName:     job.FolderName,
			JobID:          job.JobID,
			Status:         string(job.State),
			CreatedAt:      job.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-facility-term",
		Method:        http.MethodPost,
		Path:          "/api/v1/terms/facilities",
		Summary:       "Register a facility term",
		Tags:          []string{"Terms"},
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Middlewares:   protected,
	}, func(ctx context.Context, input *CreateFacilityTermInput) (*MessageOutput, error) {
		warnForeignID(ctx, opts.IDs, "id", input.Body.ID)
		created, err := svc.Terms.CreateFacilityTerm(ctx, input.Body.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		if !created {
			return &MessageOutput{Status: http.StatusOK, Body: MessageResponse{Message: "Facility term already exists"}}, nil
		}
		return &MessageOutput{Status: http.StatusCreated, Body: MessageResponse{Message: "Facility term created"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "upload-document",
		Method:        http.MethodPost,
		Path:          "/api/v1/sites/{siteId}/documents",
		Summary:       "Copy a staged file into a deal folder",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Middlewares:   protected,
	}, func(ctx context.Context, input *UploadDocumentInput) (*DocumentOutput, error) {
		docType, err := domain.Coerce(input.Body.DocumentType, domain.DocumentTypes)
		if err != nil {
			return nil, toHumaError(ctx, &domain.ValidationError{Field: "documentType", Message: err.Error()})
		}
		warnForeignID(ctx, opts.IDs, "dealIdentifier", input.Body.DealIdentifier)
		url, err := svc.Documents.Upload(ctx, input.SiteID, app.DocumentUpload{
			DealID:           input.Body.DealIdentifier,
			BuyerName:        input.Body.BuyerName,
			DocumentType:     docType,
			FileName:         input.Body.FileName,
			FileLocationPath: input.Body.FileLocationPath,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &DocumentOutput{Status: http.StatusCreated, Body: DocumentResponse{FileURL: url}}, nil
	})
}

func toSiteResponse(s app.Site) SiteResponse {
	return SiteResponse{SiteID: s.SiteID, Status: string(s.Status)}
}

// requireAPIKey rejects requests whose x-api-key header does not match key.
func requireAPIKey(api huma.API, key string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		got := ctx.Header(APIKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(ctx)
	}
}

// warnForeignID logs a ten-digit ID issued from another environment's range.
func warnForeignID(ctx context.Context, ids *domain.IDFormatValidator, field, id string) {
	if ids != nil && ids.PrefixMismatch(id) {
		slog.WarnContext(ctx, "identifier prefix does not match environment",
			"field", field, "id", id, "environment", ids.Environment(), "expected_prefix", ids.TenDigitPrefix())
	}
}
