// Package mdm implements domain.NumberingService against the master data
// management numbers API.
package mdm

import (
	"context"
	"net/http"
	"time"

	"github.com/neomorfeo/dmgateway/internal/adapter/upstream"
	"github.com/neomorfeo/dmgateway/internal/domain"
)

// Compile-time check: Client implements domain.NumberingService.
var _ domain.NumberingService = (*Client)(nil)

// Config configures the numbering client.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRedirects int
}

// Client mints identifiers.
type Client struct {
	client *upstream.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	client, err := upstream.New(upstream.Config{
		Service: domain.ServiceNumbering,
		BaseURL: cfg.BaseURL,
		Header:  http.Header{"x-api-key": []string{cfg.APIKey}},
	}, upstream.NewHTTPClient(cfg.Timeout, cfg.MaxRedirects, nil))
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

type numberRequest struct {
	NumberTypeID     int    `json:"numberTypeId"`
	CreatedBy        string `json:"createdBy"`
	RequestingSystem string `json:"requestingSystem"`
}

type generatedNumber struct {
	ID       int64  `json:"id"`
	MaskedID string `json:"maskedId"`
}

// GenerateNumbers requests req.Count new numbers of req.NumberTypeID.
func (c *Client) GenerateNumbers(ctx context.Context, req domain.NumberRequest) ([]domain.GeneratedNumber, error) {
	count := max(req.Count, 1)
	body := make([]numberRequest, count)
	for i := range body {
		body[i] = numberRequest{
			NumberTypeID:     req.NumberTypeID,
			CreatedBy:        req.CreatedBy,
			RequestingSystem: req.RequestingSystem,
		}
	}

	var resp []generatedNumber
	if err := c.client.Do(ctx, upstream.Request{Method: http.MethodPost, Path: "numbers", JSON: body}, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.GeneratedNumber, len(resp))
	for i, n := range resp {
		out[i] = domain.GeneratedNumber(n)
	}
	return out, nil
}
