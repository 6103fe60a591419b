package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// TracingLedger wraps a domain.FolderJobRepository with OpenTelemetry tracing.
type TracingLedger struct {
	next   domain.FolderJobRepository
	tracer trace.Tracer
}

// Compile-time check: TracingLedger implements domain.FolderJobRepository.
var _ domain.FolderJobRepository = (*TracingLedger)(nil)

// NewTracingLedger creates a tracing decorator around the given repository.
func NewTracingLedger(next domain.FolderJobRepository) *TracingLedger {
	return &TracingLedger{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (l *TracingLedger) Save(ctx context.Context, job domain.FolderJob) error {
	ctx, span := l.tracer.Start(ctx, "FolderJobRepository.Save",
		trace.WithAttributes(
			attribute.String("folder.cache_key", job.CacheKey),
			attribute.String("folder.state", string(job.State)),
		),
	)
	defer span.End()

	err := l.next.Save(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (l *TracingLedger) Get(ctx context.Context, cacheKey string) (domain.FolderJob, error) {
	ctx, span := l.tracer.Start(ctx, "FolderJobRepository.Get",
		trace.WithAttributes(attribute.String("folder.cache_key", cacheKey)),
	)
	defer span.End()

	job, err := l.next.Get(ctx, cacheKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return job, err
}

func (l *TracingLedger) UpdateState(ctx context.Context, cacheKey string, state domain.FolderJobState) error {
	ctx, span := l.tracer.Start(ctx, "FolderJobRepository.UpdateState",
		trace.WithAttributes(
			attribute.String("folder.cache_key", cacheKey),
			attribute.String("folder.state", string(state)),
		),
	)
	defer span.End()

	err := l.next.UpdateState(ctx, cacheKey, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// TracingTracker wraps a domain.JobTracker with OpenTelemetry tracing.
type TracingTracker struct {
	next   domain.JobTracker
	tracer trace.Tracer
}

// Compile-time check: TracingTracker implements domain.JobTracker.
var _ domain.JobTracker = (*TracingTracker)(nil)

// NewTracingTracker creates a tracing decorator around the given tracker.
func NewTracingTracker(next domain.JobTracker) *TracingTracker {
	return &TracingTracker{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (t *TracingTracker) Track(ctx context.Context, job domain.FolderJob) error {
	ctx, span := t.tracer.Start(ctx, "JobTracker.Track",
		trace.WithAttributes(
			attribute.String("folder.cache_key", job.CacheKey),
			attribute.String("provisioning.job_id", job.JobID),
		),
	)
	defer span.End()

	err := t.next.Track(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
