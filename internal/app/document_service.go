package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// DocumentUpload is the input for copying a staged file into a deal folder.
type DocumentUpload struct {
	DealID           string
	BuyerName        string
	DocumentType     domain.DocumentType
	FileName         string
	FileLocationPath string
}

// DocumentService copies staged files into deal folders.
type DocumentService struct {
	lookup        *Lookup
	directory     domain.Directory
	storage       domain.FileStorage
	lists         Lists
	documentTypes map[domain.DocumentType]domain.DocumentTypeInfo
	maxFileSize   int64
}

// NewDocumentService creates a DocumentService. Files larger than
// maxFileSize bytes are refused.
func NewDocumentService(
	directory domain.Directory,
	storage domain.FileStorage,
	lists Lists,
	documentTypes map[domain.DocumentType]domain.DocumentTypeInfo,
	maxFileSize int64,
) *DocumentService {
	return &DocumentService{
		lookup:        NewLookup(directory),
		directory:     directory,
		storage:       storage,
		lists:         lists,
		documentTypes: documentTypes,
		maxFileSize:   maxFileSize,
	}
}

// Upload copies the staged file into the deal folder of siteID and returns
// its URL in the directory.
func (s *DocumentService) Upload(ctx context.Context, siteID string, in DocumentUpload) (string, error) {
	if _, err := s.lookup.FindByKey(ctx, s.lists.siteByID(siteID), domain.SiteKey(siteID), domain.FieldID); err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return "", &domain.SiteNotFoundForUploadError{SiteID: siteID, FileName: in.FileName, Cause: err}
		}
		return "", err
	}

	info, ok := s.documentTypes[in.DocumentType]
	if !ok {
		return "", &domain.ValidationError{Field: "documentType", Message: fmt.Sprintf("%q has no document type mapping", in.DocumentType)}
	}

	src := path.Join(in.FileLocationPath, in.FileName)
	props, err := s.storage.FileProperties(ctx, src)
	if err != nil {
		return "", storageFailure(src, "read file properties", err)
	}
	if props.ContentLength > s.maxFileSize {
		return "", &domain.ValidationError{
			Field:   "fileName",
			Message: fmt.Sprintf("must not be larger than %d bytes, got %d", s.maxFileSize, props.ContentLength),
		}
	}

	body, err := s.storage.Download(ctx, src)
	if err != nil {
		return "", storageFailure(src, "download file", err)
	}
	defer body.Close()

	url, err := s.directory.UploadFile(ctx, domain.FileUpload{
		Site:       siteID,
		FolderPath: path.Join(in.BuyerName, DealFolderName(in.DealID)),
		FileName:   in.FileName,
		Content:    body,
		Size:       props.ContentLength,
		Metadata: map[string]string{
			"DocumentType":   info.Title,
			"DocumentTypeId": info.TypeID,
		},
	})
	if err != nil {
		return "", &domain.UpstreamFailureError{
			Service: domain.ServiceDirectory, Operation: "upload file", Timeout: domain.IsTimeout(err), Cause: err,
		}
	}

	slog.InfoContext(ctx, "document uploaded", "site_id", siteID, "deal_id", in.DealID, "file", in.FileName)
	return url, nil
}

func storageFailure(src, operation string, err error) error {
	var up *domain.UpstreamError
	if errors.As(err, &up) && up.StatusCode == 404 {
		return &domain.NotFoundError{Key: domain.FileKey(src), Source: "file storage", Cause: err}
	}
	return &domain.UpstreamFailureError{
		Service: domain.ServiceStorage, Operation: operation, Timeout: domain.IsTimeout(err), Cause: err,
	}
}
