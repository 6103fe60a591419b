package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// Lookup resolves natural keys against the directory.
type Lookup struct {
	directory domain.Directory
}

// NewLookup creates a Lookup backed by directory.
func NewLookup(directory domain.Directory) *Lookup {
	return &Lookup{directory: directory}
}

// FindByKey issues one filtered query and maps the result. Zero items is a
// *domain.NotFoundError for key. When several items match, the one with the
// lowest numeric ID is used.
func (l *Lookup) FindByKey(ctx context.Context, q domain.ListQuery, key domain.ResourceKey, required ...domain.Field) (domain.ResourceRecord, error) {
	items, err := l.query(ctx, q)
	if err != nil {
		return domain.ResourceRecord{}, err
	}

	switch len(items) {
	case 0:
		return domain.ResourceRecord{}, &domain.NotFoundError{Key: key, Source: q.DisplayName()}
	case 1:
		return domain.MapRecord(items[0], q.DisplayName(), required...)
	}

	item, err := lowestID(items, q.DisplayName())
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	slog.WarnContext(ctx, "directory query matched several items",
		"list", q.DisplayName(),
		"key", key.Describe(),
		"count", len(items),
		"selected_id", item.ID,
	)
	return domain.MapRecord(item, q.DisplayName(), required...)
}

// Exists reports whether q matches at least one item.
func (l *Lookup) Exists(ctx context.Context, q domain.ListQuery) (bool, error) {
	items, err := l.query(ctx, q)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

func (l *Lookup) query(ctx context.Context, q domain.ListQuery) ([]domain.ListItem, error) {
	items, err := l.directory.Query(ctx, q)
	if err != nil {
		return nil, &domain.UpstreamFailureError{
			Service:   domain.ServiceDirectory,
			Operation: "query " + q.DisplayName(),
			Timeout:   domain.IsTimeout(err),
			Cause:     err,
		}
	}
	return items, nil
}

func lowestID(items []domain.ListItem, source string) (domain.ListItem, error) {
	var (
		best   domain.ListItem
		bestID int64
	)
	for i, item := range items {
		id, err := strconv.ParseInt(item.ID, 10, 64)
		if err != nil {
			return domain.ListItem{}, &domain.DataIntegrityError{
				Source: source, Field: string(domain.FieldID), Reason: fmt.Sprintf("is not numeric: %q", item.ID), Cause: err,
			}
		}
		if i == 0 || id < bestID {
			best, bestID = item, id
		}
	}
	return best, nil
}

// fieldEq renders an OData equality filter on a list item field.
func fieldEq(field domain.Field, value string) string {
	return fmt.Sprintf("fields/%s eq '%s'", field, strings.ReplaceAll(value, "'", "''"))
}
