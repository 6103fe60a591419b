// Package custodian implements domain.ProvisioningService against the
// Custodian folder-provisioning API.
package custodian

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/neomorfeo/dmgateway/internal/adapter/upstream"
	"github.com/neomorfeo/dmgateway/internal/domain"
)

// Compile-time check: Client implements domain.ProvisioningService.
var _ domain.ProvisioningService = (*Client)(nil)

// Config configures the Custodian client.
type Config struct {
	BaseURL      string
	APIKey       string
	TemplateID   string
	Timeout      time.Duration
	MaxRedirects int
	MaxRetries   uint64
}

// Client submits and polls Custodian folder jobs.
type Client struct {
	client     *upstream.Client
	templateID string
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	client, err := upstream.New(upstream.Config{
		Service:    domain.ServiceProvisioning,
		BaseURL:    cfg.BaseURL,
		Header:     http.Header{"Ocp-Apim-Subscription-Key": []string{cfg.APIKey}},
		MaxRetries: cfg.MaxRetries,
	}, upstream.NewHTTPClient(cfg.Timeout, cfg.MaxRedirects, nil))
	if err != nil {
		return nil, err
	}
	return &Client{client: client, templateID: cfg.TemplateID}, nil
}

type metadataValue struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type documentTypeValue struct {
	Name   string `json:"Name"`
	Title  string `json:"Title"`
	TypeID string `json:"TypeId"`
}

type createRequest struct {
	RequestID                string              `json:"RequestId"`
	Title                    string              `json:"Title"`
	TemplateID               string              `json:"TemplateId"`
	ParentID                 int64               `json:"ParentId"`
	InheritParentPermissions bool                `json:"InheritParentPermissions"`
	Metadata                 []metadataValue     `json:"Metadata"`
	DocumentTypes            []documentTypeValue `json:"DocumentTypes,omitempty"`
}

type createResponse struct {
	JobID string `json:"JobId"`
}

// SubmitJob asks Custodian to create req's folder. A conflict response is
// reported as a *domain.UpstreamError with code AlreadyExists.
func (c *Client) SubmitJob(ctx context.Context, req domain.FolderCreationRequest, cacheKey string) (string, error) {
	body := createRequest{
		RequestID:  cacheKey,
		Title:      req.FolderName,
		TemplateID: c.templateID,
		ParentID:   req.ParentFolderID,
		Metadata:   metadataValues(req.Metadata),
	}
	for _, dt := range domain.DocumentTypes {
		if info, ok := req.DocumentTypeMetadata[dt]; ok {
			body.DocumentTypes = append(body.DocumentTypes, documentTypeValue{Name: string(dt), Title: info.Title, TypeID: info.TypeID})
		}
	}

	var resp createResponse
	err := c.client.Do(ctx, upstream.Request{Method: http.MethodPost, Path: "Create", JSON: body}, &resp)
	if err != nil {
		var up *domain.UpstreamError
		if errors.As(err, &up) && up.StatusCode == http.StatusConflict {
			up.Code = domain.CodeAlreadyExists
		}
		return "", err
	}
	if resp.JobID == "" {
		// Older Custodian deployments answer with an empty body; jobs are
		// then addressed by request ID only.
		return cacheKey, nil
	}
	return resp.JobID, nil
}

type jobRecord struct {
	ID            int64      `json:"Id"`
	ServerName    string     `json:"ServerName"`
	Started       *time.Time `json:"Started"`
	Completed     *time.Time `json:"Completed"`
	Failed        bool       `json:"Failed"`
	Error         string     `json:"Error"`
	Status        string     `json:"Status"`
	RequestType   string     `json:"RequestType"`
	AttemptNumber int        `json:"AttemptNumber"`
}

// GetJobsByRequestID lists every job attempt recorded for requestID.
func (c *Client) GetJobsByRequestID(ctx context.Context, requestID string) ([]domain.ProvisioningJob, error) {
	var records []jobRecord
	err := c.client.Do(ctx, upstream.Request{
		Method: http.MethodGet,
		Path:   "Jobs/ByRequestId/" + url.PathEscape(requestID),
	}, &records)
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.ProvisioningJob, len(records))
	for i, r := range records {
		jobs[i] = domain.ProvisioningJob(r)
	}
	return jobs, nil
}

func metadataValues(m map[string]string) []metadataValue {
	out := make([]metadataValue, 0, len(m))
	for k, v := range m {
		out = append(out, metadataValue{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
