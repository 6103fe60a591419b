package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

const meterName = "github.com/neomorfeo/dmgateway/internal/app"

// FolderProvisioner submits folder-creation jobs and starts tracking them.
type FolderProvisioner struct {
	provisioning domain.ProvisioningService
	jobs         domain.FolderJobRepository
	tracker      domain.JobTracker
	validator    domain.TransitionValidator
	timeout      time.Duration
	submitted    metric.Int64Counter
}

// NewFolderProvisioner creates a provisioner. timeout bounds each
// submission independently of the caller's context; zero means no bound
// beyond the HTTP client's own.
func NewFolderProvisioner(
	provisioning domain.ProvisioningService,
	jobs domain.FolderJobRepository,
	tracker domain.JobTracker,
	validator domain.TransitionValidator,
	timeout time.Duration,
) *FolderProvisioner {
	counter, err := otel.Meter(meterName).Int64Counter("dmgateway.folder_jobs.submitted",
		metric.WithDescription("Folder-creation job submissions by outcome"),
	)
	if err != nil {
		slog.Warn("folder job counter unavailable", "error", err)
		counter = noop.Int64Counter{}
	}
	return &FolderProvisioner{
		provisioning: provisioning,
		jobs:         jobs,
		tracker:      tracker,
		validator:    validator,
		timeout:      timeout,
		submitted:    counter,
	}
}

// Submit sends req to the provisioning service and classifies the result.
// The submission outlives a disconnecting client.
func (p *FolderProvisioner) Submit(ctx context.Context, req domain.FolderCreationRequest) domain.ProvisioningOutcome {
	key := req.CacheKey()

	submitCtx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(submitCtx, p.timeout)
		defer cancel()
	}

	jobID, err := p.provisioning.SubmitJob(submitCtx, req, key)
	if err != nil {
		if domain.IsAlreadyExists(err) {
			return p.alreadyExists(ctx, req, key)
		}
		timeout := domain.IsTimeout(err)
		slog.ErrorContext(ctx, "folder job submission failed",
			"cache_key", key,
			"folder", req.FolderName,
			"parent_id", req.ParentFolderID,
			"timeout", timeout,
			"error", err,
		)
		kind := domain.OutcomeFailed
		if timeout {
			kind = domain.OutcomeTimedOut
		}
		return p.finish(ctx, domain.ProvisioningOutcome{
			Kind: kind, CacheKey: key, State: domain.StateSendingToCustodian, Cause: err,
		})
	}

	state, err := p.validator.Apply(ctx, domain.StateSendingToCustodian, domain.EventAcknowledged)
	if err != nil {
		return p.finish(ctx, domain.ProvisioningOutcome{
			Kind: domain.OutcomeFailed, JobID: jobID, CacheKey: key, State: domain.StateSendingToCustodian, Cause: err,
		})
	}

	job := domain.NewFolderJob(req, jobID, state)
	p.record(ctx, job)

	// Tracking is best effort; the provisioning service remains the
	// source of truth for the job.
	if err := p.tracker.Track(context.WithoutCancel(ctx), job); err != nil {
		slog.WarnContext(ctx, "folder job tracking not enqueued", "cache_key", key, "job_id", jobID, "error", err)
	}

	slog.InfoContext(ctx, "folder job submitted", "cache_key", key, "job_id", jobID, "folder", req.FolderName)
	return p.finish(ctx, domain.ProvisioningOutcome{
		Kind: domain.OutcomeSucceeded, JobID: jobID, CacheKey: key, State: state,
	})
}

// CreateFolder is Submit with the failure variants converted to errors.
func (p *FolderProvisioner) CreateFolder(ctx context.Context, req domain.FolderCreationRequest) (domain.ProvisioningOutcome, error) {
	outcome := p.Submit(ctx, req)
	return outcome, outcome.Err()
}

func (p *FolderProvisioner) alreadyExists(ctx context.Context, req domain.FolderCreationRequest, key string) domain.ProvisioningOutcome {
	state, err := p.validator.Apply(ctx, domain.StateSendingToCustodian, domain.EventAlreadyExists)
	if err != nil {
		return p.finish(ctx, domain.ProvisioningOutcome{
			Kind: domain.OutcomeFailed, CacheKey: key, State: domain.StateSendingToCustodian, Cause: err,
		})
	}
	slog.InfoContext(ctx, "folder already exists", "cache_key", key, "folder", req.FolderName)
	p.record(ctx, domain.NewFolderJob(req, "", state))
	return p.finish(ctx, domain.ProvisioningOutcome{
		Kind: domain.OutcomeAlreadyExists, CacheKey: key, State: state,
	})
}

func (p *FolderProvisioner) record(ctx context.Context, job domain.FolderJob) {
	if err := p.jobs.Save(context.WithoutCancel(ctx), job); err != nil {
		slog.WarnContext(ctx, "folder job not recorded", "cache_key", job.CacheKey, "error", err)
	}
}

func (p *FolderProvisioner) finish(ctx context.Context, o domain.ProvisioningOutcome) domain.ProvisioningOutcome {
	p.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(o.Kind))))
	return o
}
