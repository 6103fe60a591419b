package domain

import (
	"context"
	"io"
)

// Service names used in upstream errors and logs.
const (
	ServiceDirectory    = "directory"
	ServiceProvisioning = "provisioning"
	ServiceNumbering    = "numbering"
	ServiceStorage      = "storage"
)

// Directory is the SharePoint-like listing service.
type Directory interface {
	Query(ctx context.Context, q ListQuery) ([]ListItem, error)
	CreateListItem(ctx context.Context, item ListItemCreate) (ListItem, error)
	UploadFile(ctx context.Context, upload FileUpload) (string, error)
}

// ListItemCreate describes a new directory list item.
type ListItemCreate struct {
	Site   string
	List   string
	Fields map[string]any
}

// FileUpload describes a file written into a directory folder.
type FileUpload struct {
	Site       string
	FolderPath string
	FileName   string
	Content    io.Reader
	Size       int64
	Metadata   map[string]string
}

// ProvisioningService creates folders asynchronously.
type ProvisioningService interface {
	SubmitJob(ctx context.Context, req FolderCreationRequest, cacheKey string) (string, error)
	GetJobsByRequestID(ctx context.Context, requestID string) ([]ProvisioningJob, error)
}

// NumberRequest asks the numbering service for new identifiers.
type NumberRequest struct {
	NumberTypeID     int
	CreatedBy        string
	RequestingSystem string
	Count            int
}

// GeneratedNumber is one identifier minted by the numbering service.
type GeneratedNumber struct {
	ID       int64
	MaskedID string
}

// NumberingService mints identifiers.
type NumberingService interface {
	GenerateNumbers(ctx context.Context, req NumberRequest) ([]GeneratedNumber, error)
}

// FileProperties is file metadata from storage.
type FileProperties struct {
	ContentLength int64
	ContentType   string
}

// FileStorage reads files staged for upload.
type FileStorage interface {
	FileProperties(ctx context.Context, path string) (FileProperties, error)
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}

// FolderJobRepository records observed folder job states for diagnostics.
type FolderJobRepository interface {
	Save(ctx context.Context, job FolderJob) error
	Get(ctx context.Context, cacheKey string) (FolderJob, error)
	UpdateState(ctx context.Context, cacheKey string, state FolderJobState) error
}

// JobTracker follows a submitted folder job until it reaches a terminal state.
type JobTracker interface {
	Track(ctx context.Context, job FolderJob) error
}

// TransitionValidator validates and applies folder job state transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current FolderJobState, event FolderJobEvent) (FolderJobState, error)
}

// FolderJobObserver turns what the provisioning service reports for a job
// into its next tracked state. A repeated or stale report leaves current
// unchanged without error.
type FolderJobObserver interface {
	Observe(ctx context.Context, current FolderJobState, reported []ProvisioningJob) (FolderJobState, error)
}
