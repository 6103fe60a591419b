package otel_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/dmgateway/internal/adapter/otel"
	"github.com/neomorfeo/dmgateway/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mocks ---

type mockDirectory struct {
	items []domain.ListItem
	err   error
}

func (m *mockDirectory) Query(context.Context, domain.ListQuery) ([]domain.ListItem, error) {
	return m.items, m.err
}

func (m *mockDirectory) CreateListItem(_ context.Context, _ domain.ListItemCreate) (domain.ListItem, error) {
	return domain.ListItem{ID: "17"}, m.err
}

func (m *mockDirectory) UploadFile(context.Context, domain.FileUpload) (string, error) {
	return "https://example.test/file.pdf", m.err
}

type mockProvisioning struct {
	err error
}

func (m *mockProvisioning) SubmitJob(context.Context, domain.FolderCreationRequest, string) (string, error) {
	return "job-1", m.err
}

func (m *mockProvisioning) GetJobsByRequestID(context.Context, string) ([]domain.ProvisioningJob, error) {
	return []domain.ProvisioningJob{{ID: 1}, {ID: 2}}, m.err
}

type mockLedger struct {
	jobs map[string]domain.FolderJob
}

func (m *mockLedger) Save(_ context.Context, job domain.FolderJob) error {
	m.jobs[job.CacheKey] = job
	return nil
}

func (m *mockLedger) Get(_ context.Context, key string) (domain.FolderJob, error) {
	job, ok := m.jobs[key]
	if !ok {
		return domain.FolderJob{}, domain.ErrFolderJobNotFound
	}
	return job, nil
}

func (m *mockLedger) UpdateState(_ context.Context, key string, state domain.FolderJobState) error {
	job, ok := m.jobs[key]
	if !ok {
		return domain.ErrFolderJobNotFound
	}
	job.State = state
	m.jobs[key] = job
	return nil
}

type mockTracker struct{ err error }

func (m *mockTracker) Track(context.Context, domain.FolderJob) error { return m.err }

// --- Tests ---

func TestTracingDirectory_Query_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	dir := adapter.NewTracingDirectory(&mockDirectory{items: []domain.ListItem{{ID: "1"}, {ID: "2"}}})

	items, err := dir.Query(context.Background(), domain.ListQuery{
		Site: "tfis", List: "list-guid", Name: "tfisCaseSitesList", Filter: "fields/URL eq '00701234'",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want 2", len(items))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "Directory.Query" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "Directory.Query")
	}

	assertAttribute(t, spans[0], "directory.list", "tfisCaseSitesList")
	assertAttribute(t, spans[0], "directory.filter", "fields/URL eq '00701234'")
	assertAttribute(t, spans[0], "result.count", "2")
}

func TestTracingDirectory_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	upstream := &domain.UpstreamError{Service: domain.ServiceDirectory, StatusCode: 503}
	dir := adapter.NewTracingDirectory(&mockDirectory{err: upstream})

	_, err := dir.UploadFile(context.Background(), domain.FileUpload{FileName: "form.pdf", Size: 8})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
	assertAttribute(t, spans[0], "file.size", "8")
}

func TestTracingDirectory_CreateListItem_RecordsItemID(t *testing.T) {
	exporter := setupTestTracer(t)
	dir := adapter.NewTracingDirectory(&mockDirectory{})

	if _, err := dir.CreateListItem(context.Background(), domain.ListItemCreate{Site: "tfis", List: "cases"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "directory.item_id", "17")
}

func TestTracingProvisioning_SubmitJob_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	prov := adapter.NewTracingProvisioning(&mockProvisioning{})
	req := domain.FolderCreationRequest{ParentFolderID: 42, FolderName: "D 0030000321"}

	jobID, err := prov.SubmitJob(context.Background(), req, req.CacheKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("jobID = %q, want %q", jobID, "job-1")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "ProvisioningService.SubmitJob" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "ProvisioningService.SubmitJob")
	}
	assertAttribute(t, spans[0], "folder.cache_key", req.CacheKey())
	assertAttribute(t, spans[0], "folder.parent_id", "42")
	assertAttribute(t, spans[0], "provisioning.job_id", "job-1")
}

func TestTracingProvisioning_AlreadyExistsIsNotAnError(t *testing.T) {
	exporter := setupTestTracer(t)
	exists := &domain.UpstreamError{Service: domain.ServiceProvisioning, StatusCode: 409, Code: domain.CodeAlreadyExists}
	prov := adapter.NewTracingProvisioning(&mockProvisioning{err: exists})

	_, err := prov.SubmitJob(context.Background(), domain.FolderCreationRequest{ParentFolderID: 1, FolderName: "x"}, "1-abc")
	if !domain.IsAlreadyExists(err) {
		t.Fatalf("expected already exists, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code == codes.Error {
		t.Error("span status should not be error for an existing folder")
	}
	assertAttribute(t, spans[0], "folder.already_exists", "true")
}

func TestTracingProvisioning_GetJobs_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	prov := adapter.NewTracingProvisioning(&mockProvisioning{})

	if _, err := prov.GetJobsByRequestID(context.Background(), "1-abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "result.count", "2")
}

func TestTracingLedger_RecordsSpans(t *testing.T) {
	exporter := setupTestTracer(t)
	ledger := adapter.NewTracingLedger(&mockLedger{jobs: map[string]domain.FolderJob{}})
	ctx := context.Background()

	job := domain.FolderJob{CacheKey: "1-abc", State: domain.StateSentToCustodian}
	if err := ledger.Save(ctx, job); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := ledger.UpdateState(ctx, "1-abc", domain.StateJobStarted); err != nil {
		t.Fatalf("UpdateState failed: %v", err)
	}
	if _, err := ledger.Get(ctx, "missing"); !errors.Is(err, domain.ErrFolderJobNotFound) {
		t.Fatalf("expected ErrFolderJobNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name
	}
	want := "FolderJobRepository.Save,FolderJobRepository.UpdateState,FolderJobRepository.Get"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("spans = %s, want %s", got, want)
	}
	assertAttribute(t, spans[1], "folder.state", string(domain.StateJobStarted))
	if spans[2].Status.Code != codes.Error {
		t.Errorf("Get span status = %v, want %v", spans[2].Status.Code, codes.Error)
	}
}

func TestTracingTracker_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	tracker := adapter.NewTracingTracker(&mockTracker{err: errors.New("queue closed")})

	err := tracker.Track(context.Background(), domain.FolderJob{CacheKey: "1-abc", JobID: "job-1"})
	if err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	assertAttribute(t, spans[0], "provisioning.job_id", "job-1")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
