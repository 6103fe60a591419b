package river

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// FolderJobWorker polls the provisioning service for a submitted folder
// job and records every state change in the ledger until the job reaches
// a terminal state or the tracking deadline passes.
type FolderJobWorker struct {
	river.WorkerDefaults[TrackFolderJobArgs]

	provisioning domain.ProvisioningService
	jobs         domain.FolderJobRepository
	observer     domain.FolderJobObserver
	pollInterval time.Duration
	deadline     time.Duration
}

// NewFolderJobWorker creates the worker. A zero deadline tracks forever.
func NewFolderJobWorker(
	provisioning domain.ProvisioningService,
	jobs domain.FolderJobRepository,
	observer domain.FolderJobObserver,
	pollInterval, deadline time.Duration,
) *FolderJobWorker {
	return &FolderJobWorker{
		provisioning: provisioning,
		jobs:         jobs,
		observer:     observer,
		pollInterval: pollInterval,
		deadline:     deadline,
	}
}

// Work performs one poll.
func (w *FolderJobWorker) Work(ctx context.Context, job *river.Job[TrackFolderJobArgs]) error {
	args := job.Args
	log := slog.With("cache_key", args.CacheKey, "folder", args.FolderName, "river_job_id", job.ID)

	recorded, err := w.jobs.Get(ctx, args.CacheKey)
	if err != nil {
		return fmt.Errorf("reading folder job: %w", err)
	}
	if recorded.State.IsTerminal() {
		return nil
	}

	if w.deadline > 0 && time.Since(args.SubmittedAt) > w.deadline {
		log.WarnContext(ctx, "gave up tracking folder job", "state", recorded.State)
		return river.JobCancel(fmt.Errorf("folder job %s not finished after %s", args.CacheKey, w.deadline))
	}

	reported, err := w.provisioning.GetJobsByRequestID(ctx, args.CacheKey)
	if err != nil {
		return fmt.Errorf("polling folder job: %w", err)
	}

	next, err := w.observer.Observe(ctx, recorded.State, reported)
	if err != nil {
		return fmt.Errorf("observing folder job: %w", err)
	}
	if next == recorded.State {
		log.DebugContext(ctx, "folder job unchanged", "state", recorded.State)
		return river.JobSnooze(w.pollInterval)
	}

	if err := w.jobs.UpdateState(ctx, args.CacheKey, next); err != nil {
		return fmt.Errorf("recording folder job state: %w", err)
	}
	log.InfoContext(ctx, "folder job state changed", "from", recorded.State, "to", next)

	if next.IsTerminal() {
		return nil
	}
	return river.JobSnooze(w.pollInterval)
}
