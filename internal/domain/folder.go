package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// DocumentType is a category of document stored in a facility folder.
type DocumentType string

const (
	DocumentTypeApplication         DocumentType = "Application"
	DocumentTypeFinancialStatement  DocumentType = "Financial Statement"
	DocumentTypeBusinessInformation DocumentType = "Business Information"
	DocumentTypeCorrespondence      DocumentType = "Correspondence"
	DocumentTypeLegal               DocumentType = "Legal Document"
)

// DocumentTypes lists every DocumentType.
var DocumentTypes = []DocumentType{
	DocumentTypeApplication,
	DocumentTypeFinancialStatement,
	DocumentTypeBusinessInformation,
	DocumentTypeCorrespondence,
	DocumentTypeLegal,
}

// DocumentTypeInfo is the directory metadata attached to a document type.
type DocumentTypeInfo struct {
	Title  string `json:"title"`
	TypeID string `json:"typeId"`
}

// FolderCreationRequest asks the provisioning service for one folder.
type FolderCreationRequest struct {
	ParentFolderID       int64
	FolderName           string
	DocumentTypeMetadata map[DocumentType]DocumentTypeInfo
	Metadata             map[string]string
}

// CacheKey identifies the request for deduplication and job polling.
// It joins the parent ID with the first 128 bits of SHA-256 of the name.
func (r FolderCreationRequest) CacheKey() string {
	return CacheKey(r.ParentFolderID, r.FolderName)
}

// CacheKey is the function form of FolderCreationRequest.CacheKey.
func CacheKey(parentFolderID int64, folderName string) string {
	sum := sha256.Sum256([]byte(folderName))
	return strconv.FormatInt(parentFolderID, 10) + "-" + hex.EncodeToString(sum[:16])
}

// FolderJobState is the lifecycle state of a folder-creation job.
type FolderJobState string

const (
	StateSendingToCustodian FolderJobState = "SENDING_TO_CUSTODIAN"
	StateSentToCustodian    FolderJobState = "SENT_TO_CUSTODIAN"
	StateJobNotReadableYet  FolderJobState = "CUSTODIAN_JOB_NOT_READABLE_YET"
	StateJobNotStarted      FolderJobState = "CUSTODIAN_JOB_NOT_STARTED"
	StateJobStarted         FolderJobState = "CUSTODIAN_JOB_STARTED"
	StateJobCompleted       FolderJobState = "CUSTODIAN_JOB_COMPLETED"
	StateJobFailed          FolderJobState = "CUSTODIAN_JOB_FAILED"
	StateExistsInSharePoint FolderJobState = "EXISTS_IN_SHAREPOINT"
)

// IsTerminal reports whether no further transition can leave s.
func (s FolderJobState) IsTerminal() bool {
	switch s {
	case StateJobCompleted, StateJobFailed, StateExistsInSharePoint:
		return true
	default:
		return false
	}
}

// FolderJobEvent moves a folder job between states.
type FolderJobEvent string

const (
	EventAcknowledged   FolderJobEvent = "acknowledged"
	EventAlreadyExists  FolderJobEvent = "already_exists"
	EventJobNotReadable FolderJobEvent = "job_not_readable"
	EventJobQueued      FolderJobEvent = "job_queued"
	EventJobStarted     FolderJobEvent = "job_started"
	EventJobCompleted   FolderJobEvent = "job_completed"
	EventJobFailed      FolderJobEvent = "job_failed"
)

// FolderJobTransition defines a valid state change.
type FolderJobTransition struct {
	Event FolderJobEvent
	Src   FolderJobState
	Dst   FolderJobState
}

// FolderJobTransitions defines every valid change in a folder job's life.
// Polling may skip intermediate states, so later events accept every
// earlier non-terminal source.
var FolderJobTransitions = []FolderJobTransition{
	{Event: EventAcknowledged, Src: StateSendingToCustodian, Dst: StateSentToCustodian},
	{Event: EventAlreadyExists, Src: StateSendingToCustodian, Dst: StateExistsInSharePoint},

	{Event: EventJobNotReadable, Src: StateSentToCustodian, Dst: StateJobNotReadableYet},

	{Event: EventJobQueued, Src: StateSentToCustodian, Dst: StateJobNotStarted},
	{Event: EventJobQueued, Src: StateJobNotReadableYet, Dst: StateJobNotStarted},

	{Event: EventJobStarted, Src: StateSentToCustodian, Dst: StateJobStarted},
	{Event: EventJobStarted, Src: StateJobNotReadableYet, Dst: StateJobStarted},
	{Event: EventJobStarted, Src: StateJobNotStarted, Dst: StateJobStarted},

	{Event: EventJobCompleted, Src: StateSentToCustodian, Dst: StateJobCompleted},
	{Event: EventJobCompleted, Src: StateJobNotReadableYet, Dst: StateJobCompleted},
	{Event: EventJobCompleted, Src: StateJobNotStarted, Dst: StateJobCompleted},
	{Event: EventJobCompleted, Src: StateJobStarted, Dst: StateJobCompleted},

	{Event: EventJobFailed, Src: StateSentToCustodian, Dst: StateJobFailed},
	{Event: EventJobFailed, Src: StateJobNotReadableYet, Dst: StateJobFailed},
	{Event: EventJobFailed, Src: StateJobNotStarted, Dst: StateJobFailed},
	{Event: EventJobFailed, Src: StateJobStarted, Dst: StateJobFailed},
}

// ProvisioningJob is one job record reported by the provisioning service.
type ProvisioningJob struct {
	ID            int64
	ServerName    string
	Started       *time.Time
	Completed     *time.Time
	Failed        bool
	Error         string
	Status        string
	RequestType   string
	AttemptNumber int
}

// ObserveJobs maps the job records for one request onto the event that
// moves a tracked job to what the provisioning service currently reports.
// The record with the highest attempt number wins.
func ObserveJobs(jobs []ProvisioningJob) FolderJobEvent {
	if len(jobs) == 0 {
		return EventJobNotReadable
	}
	latest := jobs[0]
	for _, j := range jobs[1:] {
		if j.AttemptNumber >= latest.AttemptNumber {
			latest = j
		}
	}
	switch {
	case latest.Failed:
		return EventJobFailed
	case latest.Completed != nil:
		return EventJobCompleted
	case latest.Started != nil:
		return EventJobStarted
	default:
		return EventJobQueued
	}
}

// FolderJob is the ledger entry for a submitted folder-creation job.
type FolderJob struct {
	CacheKey       string
	ParentFolderID int64
	FolderName     string
	JobID          string
	State          FolderJobState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewFolderJob creates a ledger entry in the given state.
func NewFolderJob(req FolderCreationRequest, jobID string, state FolderJobState) FolderJob {
	now := time.Now().UTC()
	return FolderJob{
		CacheKey:       req.CacheKey(),
		ParentFolderID: req.ParentFolderID,
		FolderName:     req.FolderName,
		JobID:          jobID,
		State:          state,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// OutcomeKind tags a ProvisioningOutcome.
type OutcomeKind string

const (
	OutcomeSucceeded     OutcomeKind = "succeeded"
	OutcomeAlreadyExists OutcomeKind = "already_exists"
	OutcomeTimedOut      OutcomeKind = "timed_out"
	OutcomeFailed        OutcomeKind = "failed"
)

// ProvisioningOutcome is the result of submitting a folder-creation job.
type ProvisioningOutcome struct {
	Kind     OutcomeKind
	JobID    string
	CacheKey string
	State    FolderJobState
	Cause    error
}

// Err converts the failure variants into an *UpstreamFailureError.
// Succeeded and AlreadyExists return nil.
func (o ProvisioningOutcome) Err() error {
	switch o.Kind {
	case OutcomeTimedOut:
		return &UpstreamFailureError{Service: ServiceProvisioning, Operation: "submit folder job", Timeout: true, Cause: o.Cause}
	case OutcomeFailed:
		return &UpstreamFailureError{Service: ServiceProvisioning, Operation: "submit folder job", Cause: o.Cause}
	default:
		return nil
	}
}
