// Package upstream is the JSON-over-HTTP client shared by the adapters that
// talk to back-end services. It bounds every call with a timeout and a
// redirect limit, tags requests with a correlation ID, retries idempotent
// reads on throttling, and reports failures as *domain.UpstreamError.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// CorrelationHeader carries the per-call correlation ID.
const CorrelationHeader = "x-correlation-id"

const maxErrorBody = 64 << 10

// Config configures a Client for one back-end service.
type Config struct {
	Service string
	BaseURL string
	// Header is added to every request, e.g. a static API key.
	Header http.Header
	// MaxRetries bounds retries of GET requests on 429/502/503/504.
	MaxRetries uint64
	// RetryInitialInterval is the first backoff wait. Defaults to 200ms.
	RetryInitialInterval time.Duration
}

// Client sends JSON requests to one back-end service.
type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
}

// NewHTTPClient returns an *http.Client with a per-call timeout and at most
// maxRedirects redirects. transport may be nil.
func NewHTTPClient(timeout time.Duration, maxRedirects int, transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: limitRedirects(maxRedirects),
	}
}

func limitRedirects(max int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// New creates a Client. httpClient carries the timeout, redirect policy
// and any authenticating transport.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing %s base url: %w", cfg.Service, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s base url %q must be absolute", cfg.Service, cfg.BaseURL)
	}
	if cfg.RetryInitialInterval == 0 {
		cfg.RetryInitialInterval = 200 * time.Millisecond
	}
	return &Client{cfg: cfg, base: base, http: httpClient}, nil
}

// Request describes one call. JSON, when set, is encoded as the body;
// otherwise Body is sent as is.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Header        http.Header
	JSON          any
	Body          io.Reader
	ContentLength int64
}

// Do sends r and decodes a JSON response into result when it is non-nil.
func (c *Client) Do(ctx context.Context, r Request, result any) error {
	var payload []byte
	if r.JSON != nil {
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", c.cfg.Service, err)
		}
		payload = b
	}

	correlationID := uuid.NewString()
	op := func() error {
		return c.send(ctx, r, payload, correlationID, result)
	}

	if r.Method != http.MethodGet || c.cfg.MaxRetries == 0 {
		return unwrapPermanent(op())
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialInterval
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx))
}

func (c *Client) send(ctx context.Context, r Request, payload []byte, correlationID string, result any) error {
	body := r.Body
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.endpoint(r.Path, r.Query), body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("building %s request: %w", c.cfg.Service, err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	} else if r.ContentLength > 0 {
		req.ContentLength = r.ContentLength
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(CorrelationHeader, correlationID)
	copyHeader(req.Header, c.cfg.Header)
	copyHeader(req.Header, r.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return backoff.Permanent(c.transportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		upErr := c.statusError(resp)
		if retryable(resp.StatusCode) {
			return upErr
		}
		return backoff.Permanent(upErr)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return backoff.Permanent(&domain.UpstreamError{
			Service: c.cfg.Service, StatusCode: resp.StatusCode, Message: "undecodable response body", Cause: err,
		})
	}
	return nil
}

// endpoint joins path, given in escaped form, onto the base URL. OData
// option names keep their literal "$".
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = strings.ReplaceAll(query.Encode(), "%24", "$")
	}
	return u.String()
}

func (c *Client) transportError(err error) error {
	var up *domain.UpstreamError
	if errors.As(err, &up) {
		return up
	}
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &domain.UpstreamError{Service: c.cfg.Service, Timeout: timeout, Message: "request failed", Cause: err}
}

// errorBody covers the error envelopes the back ends use: a nested
// {"error":{"code","message"}} and a flat {"code","message"}.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string          `json:"code"`
	Message json.RawMessage `json:"message"`
}

func (c *Client) statusError(resp *http.Response) *domain.UpstreamError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	up := &domain.UpstreamError{Service: c.cfg.Service, StatusCode: resp.StatusCode}

	var eb errorBody
	if json.Unmarshal(raw, &eb) != nil {
		up.Message = strings.TrimSpace(string(raw))
		return up
	}
	if eb.Error != nil {
		up.Code, up.Message = eb.Error.Code, eb.Error.Message
		return up
	}
	up.Code = eb.Code
	var msg string
	if json.Unmarshal(eb.Message, &msg) == nil {
		up.Message = msg
	} else {
		up.Message = string(eb.Message)
	}
	return up
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
