package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// TracingProvisioning wraps a domain.ProvisioningService with OpenTelemetry tracing.
type TracingProvisioning struct {
	next   domain.ProvisioningService
	tracer trace.Tracer
}

// Compile-time check: TracingProvisioning implements domain.ProvisioningService.
var _ domain.ProvisioningService = (*TracingProvisioning)(nil)

// NewTracingProvisioning creates a tracing decorator around the given service.
func NewTracingProvisioning(next domain.ProvisioningService) *TracingProvisioning {
	return &TracingProvisioning{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingProvisioning) SubmitJob(ctx context.Context, req domain.FolderCreationRequest, cacheKey string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "ProvisioningService.SubmitJob",
		trace.WithAttributes(
			attribute.String("folder.name", req.FolderName),
			attribute.Int64("folder.parent_id", req.ParentFolderID),
			attribute.String("folder.cache_key", cacheKey),
		),
	)
	defer span.End()

	jobID, err := p.next.SubmitJob(ctx, req, cacheKey)
	switch {
	case domain.IsAlreadyExists(err):
		// Not a failure: the folder is already there.
		span.SetAttributes(attribute.Bool("folder.already_exists", true))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetAttributes(attribute.String("provisioning.job_id", jobID))
	}
	return jobID, err
}

func (p *TracingProvisioning) GetJobsByRequestID(ctx context.Context, requestID string) ([]domain.ProvisioningJob, error) {
	ctx, span := p.tracer.Start(ctx, "ProvisioningService.GetJobsByRequestID",
		trace.WithAttributes(attribute.String("folder.cache_key", requestID)),
	)
	defer span.End()

	jobs, err := p.next.GetJobsByRequestID(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(jobs)))
	}
	return jobs, err
}
