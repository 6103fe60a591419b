package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

const tracerName = "github.com/neomorfeo/dmgateway/internal/adapter/otel"

// TracingDirectory wraps a domain.Directory with OpenTelemetry tracing.
// Each method creates a span with list attributes and records errors.
type TracingDirectory struct {
	next   domain.Directory
	tracer trace.Tracer
}

// Compile-time check: TracingDirectory implements domain.Directory.
var _ domain.Directory = (*TracingDirectory)(nil)

// NewTracingDirectory creates a tracing decorator around the given directory.
func NewTracingDirectory(next domain.Directory) *TracingDirectory {
	return &TracingDirectory{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (d *TracingDirectory) Query(ctx context.Context, q domain.ListQuery) ([]domain.ListItem, error) {
	ctx, span := d.tracer.Start(ctx, "Directory.Query",
		trace.WithAttributes(
			attribute.String("directory.site", q.Site),
			attribute.String("directory.list", q.DisplayName()),
			attribute.String("directory.filter", q.Filter),
		),
	)
	defer span.End()

	items, err := d.next.Query(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(items)))
	}
	return items, err
}

func (d *TracingDirectory) CreateListItem(ctx context.Context, item domain.ListItemCreate) (domain.ListItem, error) {
	ctx, span := d.tracer.Start(ctx, "Directory.CreateListItem",
		trace.WithAttributes(
			attribute.String("directory.site", item.Site),
			attribute.String("directory.list", item.List),
		),
	)
	defer span.End()

	created, err := d.next.CreateListItem(ctx, item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("directory.item_id", created.ID))
	}
	return created, err
}

func (d *TracingDirectory) UploadFile(ctx context.Context, upload domain.FileUpload) (string, error) {
	ctx, span := d.tracer.Start(ctx, "Directory.UploadFile",
		trace.WithAttributes(
			attribute.String("directory.site", upload.Site),
			attribute.String("directory.folder", upload.FolderPath),
			attribute.String("file.name", upload.FileName),
			attribute.Int64("file.size", upload.Size),
		),
	)
	defer span.End()

	url, err := d.next.UploadFile(ctx, upload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return url, err
}
