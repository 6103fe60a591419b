package river

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// Compile-time check: Tracker implements domain.JobTracker.
var _ domain.JobTracker = (*Tracker)(nil)

// TrackFolderJobArgs identifies a submitted folder job to poll. Only the
// cache key takes part in uniqueness, so resubmitting the same folder does
// not start a second poller.
type TrackFolderJobArgs struct {
	CacheKey       string    `json:"cache_key" river:"unique"`
	ParentFolderID int64     `json:"parent_folder_id"`
	FolderName     string    `json:"folder_name"`
	JobID          string    `json:"job_id"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TrackFolderJobArgs) Kind() string { return "folder_job.track" }

// InsertOpts makes tracking jobs unique per cache key while a tracker is
// still live. Finished trackers (completed, cancelled, discarded) do not
// count, so a folder submitted again is tracked again.
func (TrackFolderJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRetryable,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	}
}

// Tracker implements domain.JobTracker by enqueuing River jobs.
type Tracker struct {
	client *Client
}

// NewTracker creates a tracker backed by the given River client.
func NewTracker(client *Client) *Tracker {
	return &Tracker{client: client}
}

// Track enqueues a polling job for job.
func (t *Tracker) Track(ctx context.Context, job domain.FolderJob) error {
	res, err := t.client.Insert(ctx, TrackFolderJobArgs{
		CacheKey:       job.CacheKey,
		ParentFolderID: job.ParentFolderID,
		FolderName:     job.FolderName,
		JobID:          job.JobID,
		SubmittedAt:    job.CreatedAt,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing folder job tracking: %w", err)
	}
	if res.UniqueSkippedAsDuplicate {
		slog.DebugContext(ctx, "folder job already tracked", "cache_key", job.CacheKey)
	}
	return nil
}
