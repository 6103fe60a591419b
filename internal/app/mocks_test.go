package app_test

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"

	"github.com/neomorfeo/dmgateway/internal/app"
	"github.com/neomorfeo/dmgateway/internal/domain"
)

var testLists = app.Lists{
	TfisSite:          "tfis",
	CaseSitesList:     "case-sites-id",
	MarketTermsList:   "market-terms-id",
	FacilityTermsList: "facility-terms-id",
	CaseLibrary:       "case-library-id",
}

// --- Directory ---

type mockDirectory struct {
	mu       sync.Mutex
	results  map[string][]domain.ListItem // keyed by ListQuery.Filter
	queryErr error
	queries  []domain.ListQuery

	createErr error
	created   []domain.ListItemCreate

	uploadErr error
	uploads   []domain.FileUpload
	uploaded  []byte
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{results: make(map[string][]domain.ListItem)}
}

func (m *mockDirectory) on(filter string, items ...domain.ListItem) *mockDirectory {
	m.results[filter] = items
	return m
}

func (m *mockDirectory) Query(_ context.Context, q domain.ListQuery) ([]domain.ListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.results[q.Filter], nil
}

func (m *mockDirectory) CreateListItem(_ context.Context, item domain.ListItemCreate) (domain.ListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domain.ListItem{}, m.createErr
	}
	m.created = append(m.created, item)
	return domain.ListItem{ID: strconv.Itoa(len(m.created)), Fields: item.Fields}, nil
}

func (m *mockDirectory) UploadFile(_ context.Context, upload domain.FileUpload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	b, err := io.ReadAll(upload.Content)
	if err != nil {
		return "", err
	}
	m.uploads = append(m.uploads, upload)
	m.uploaded = b
	return "https://sp.example.test/sites/" + upload.Site + "/" + upload.FolderPath + "/" + upload.FileName, nil
}

func siteItem(id, siteID, termGuid string) domain.ListItem {
	return domain.ListItem{
		ID: id,
		Fields: map[string]any{
			"Title":      "Acme Exports",
			"URL":        siteID,
			"TermGuid":   termGuid,
			"SiteStatus": "Created",
		},
	}
}

func folderItem(id, title string) domain.ListItem {
	return domain.ListItem{ID: id, Fields: map[string]any{"Title": title}}
}

func termItem(id, title, guid string) domain.ListItem {
	return domain.ListItem{ID: id, Fields: map[string]any{"Title": title, "TermGuid": guid}}
}

// --- Provisioning ---

type mockProvisioning struct {
	mu        sync.Mutex
	jobID     string
	err       error
	submitted []domain.FolderCreationRequest
	keys      []string
	ctxErr    error
}

func (m *mockProvisioning) SubmitJob(ctx context.Context, req domain.FolderCreationRequest, cacheKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	m.submitted = append(m.submitted, req)
	m.keys = append(m.keys, cacheKey)
	if m.err != nil {
		return "", m.err
	}
	return m.jobID, nil
}

func (m *mockProvisioning) GetJobsByRequestID(context.Context, string) ([]domain.ProvisioningJob, error) {
	return nil, nil
}

// --- Ledger ---

type mockJobs struct {
	mu   sync.Mutex
	jobs map[string]domain.FolderJob
	err  error
}

func newMockJobs() *mockJobs {
	return &mockJobs{jobs: make(map[string]domain.FolderJob)}
}

func (m *mockJobs) Save(_ context.Context, job domain.FolderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs[job.CacheKey] = job
	return nil
}

func (m *mockJobs) Get(_ context.Context, cacheKey string) (domain.FolderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[cacheKey]
	if !ok {
		return domain.FolderJob{}, domain.ErrFolderJobNotFound
	}
	return job, nil
}

func (m *mockJobs) UpdateState(_ context.Context, cacheKey string, state domain.FolderJobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[cacheKey]
	if !ok {
		return domain.ErrFolderJobNotFound
	}
	job.State = state
	m.jobs[cacheKey] = job
	return nil
}

// --- Tracker ---

type mockTracker struct {
	mu      sync.Mutex
	tracked []domain.FolderJob
	err     error
}

func (m *mockTracker) Track(_ context.Context, job domain.FolderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tracked = append(m.tracked, job)
	return nil
}

// --- Transitions ---

// tableValidator applies domain.FolderJobTransitions directly.
type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.FolderJobState, event domain.FolderJobEvent) (domain.FolderJobState, error) {
	for _, t := range domain.FolderJobTransitions {
		if t.Event == event && t.Src == current {
			return t.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

// --- Numbering ---

type mockNumbering struct {
	numbers []domain.GeneratedNumber
	err     error
	reqs    []domain.NumberRequest
}

func (m *mockNumbering) GenerateNumbers(_ context.Context, req domain.NumberRequest) ([]domain.GeneratedNumber, error) {
	m.reqs = append(m.reqs, req)
	return m.numbers, m.err
}

// --- Storage ---

type mockStorage struct {
	files map[string][]byte
	err   error
}

func (m *mockStorage) FileProperties(_ context.Context, path string) (domain.FileProperties, error) {
	if m.err != nil {
		return domain.FileProperties{}, m.err
	}
	b, ok := m.files[path]
	if !ok {
		return domain.FileProperties{}, &domain.UpstreamError{Service: domain.ServiceStorage, StatusCode: 404}
	}
	return domain.FileProperties{ContentLength: int64(len(b)), ContentType: "application/pdf"}, nil
}

func (m *mockStorage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.files[path]
	if !ok {
		return nil, &domain.UpstreamError{Service: domain.ServiceStorage, StatusCode: 404}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func newProvisioner(p *mockProvisioning, jobs *mockJobs, tracker *mockTracker) *app.FolderProvisioner {
	return app.NewFolderProvisioner(p, jobs, tracker, tableValidator{}, 0)
}
