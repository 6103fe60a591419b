package domain

import (
	"fmt"
	"strconv"
)

// KeyKind identifies the natural key used to look a resource up.
type KeyKind string

const (
	KeySiteID       KeyKind = "site_id"
	KeyExporterName KeyKind = "exporter_name"
	KeyTenDigitID   KeyKind = "ten_digit_id"
	KeyBuyerName    KeyKind = "buyer_name"
	KeyMarketName   KeyKind = "market_name"
	KeyFolderJob    KeyKind = "folder_job"
	KeyFilePath     KeyKind = "file_path"
)

// ResourceKey is a business identifier for an upstream resource.
type ResourceKey struct {
	Kind  KeyKind
	Value string
}

func SiteKey(siteID string) ResourceKey { return ResourceKey{Kind: KeySiteID, Value: siteID} }
func ExporterKey(name string) ResourceKey { return ResourceKey{Kind: KeyExporterName, Value: name} }
func DealKey(id string) ResourceKey { return ResourceKey{Kind: KeyTenDigitID, Value: id} }
func BuyerKey(name string) ResourceKey { return ResourceKey{Kind: KeyBuyerName, Value: name} }
func MarketKey(name string) ResourceKey { return ResourceKey{Kind: KeyMarketName, Value: name} }
func FolderJobKey(key string) ResourceKey { return ResourceKey{Kind: KeyFolderJob, Value: key} }
func FileKey(path string) ResourceKey { return ResourceKey{Kind: KeyFilePath, Value: path} }

// Describe renders the key the way client messages refer to it.
func (k ResourceKey) Describe() string {
	switch k.Kind {
	case KeySiteID:
		return "site " + k.Value
	case KeyExporterName:
		return "site for exporter " + k.Value
	case KeyTenDigitID:
		return "folder for deal " + k.Value
	case KeyBuyerName:
		return "folder for buyer " + k.Value
	case KeyMarketName:
		return "market " + k.Value
	case KeyFolderJob:
		return "folder job " + k.Value
	case KeyFilePath:
		return "file " + k.Value
	default:
		return k.Value
	}
}

// ListQuery addresses one filtered read of a directory list.
type ListQuery struct {
	Site   string // site the list belongs to
	List   string // list ID or name used in the request path
	Name   string // display name for messages; defaults to List
	Filter string
	Expand string
}

// DisplayName returns the list name used in client messages.
func (q ListQuery) DisplayName() string {
	if q.Name != "" {
		return q.Name
	}
	return q.List
}

// ListItem is a raw directory record.
type ListItem struct {
	ID     string
	WebURL string
	Fields map[string]any
}

// SiteStatus is the provisioning state recorded for a site.
type SiteStatus string

const (
	SiteStatusProvisioning SiteStatus = "Provisioning"
	SiteStatusCreated      SiteStatus = "Created"
	SiteStatusFailed       SiteStatus = "Failed"
)

// SiteStatuses lists every SiteStatus.
var SiteStatuses = []SiteStatus{SiteStatusProvisioning, SiteStatusCreated, SiteStatusFailed}

// Field names a directory field a caller may require.
type Field string

const (
	FieldID         Field = "id"
	FieldTitle      Field = "Title"
	FieldTermGuid   Field = "TermGuid"
	FieldURL        Field = "URL"
	FieldSiteURL    Field = "SiteURL"
	FieldSiteStatus Field = "SiteStatus"
)

// ResourceRecord is a directory item mapped into typed fields.
type ResourceRecord struct {
	ID       int64
	Title    string
	TermGuid string
	URL      string
	SiteURL  string
	Status   SiteStatus
}

// MapRecord converts item into a ResourceRecord. Every required field must
// be present with the expected type; optional fields are taken when
// well-formed.
func MapRecord(item ListItem, source string, required ...Field) (ResourceRecord, error) {
	need := make(map[Field]bool, len(required))
	for _, f := range required {
		need[f] = true
	}

	var rec ResourceRecord

	if item.ID != "" || need[FieldID] {
		id, err := strconv.ParseInt(item.ID, 10, 64)
		switch {
		case err == nil:
			rec.ID = id
		case need[FieldID]:
			return ResourceRecord{}, &DataIntegrityError{
				Source: source, Field: string(FieldID), Reason: fmt.Sprintf("is not numeric: %q", item.ID), Cause: err,
			}
		}
	}

	strs := []struct {
		field Field
		dst   *string
	}{
		{FieldTitle, &rec.Title},
		{FieldTermGuid, &rec.TermGuid},
		{FieldURL, &rec.URL},
		{FieldSiteURL, &rec.SiteURL},
	}
	for _, s := range strs {
		v, err := stringField(item, s.field, source, need[s.field])
		if err != nil {
			return ResourceRecord{}, err
		}
		*s.dst = v
	}

	if raw, ok := item.Fields[string(FieldSiteStatus)]; ok || need[FieldSiteStatus] {
		if !ok {
			return ResourceRecord{}, missingField(source, FieldSiteStatus)
		}
		status, err := Coerce(raw, SiteStatuses)
		switch {
		case err == nil:
			rec.Status = status
		case need[FieldSiteStatus]:
			return ResourceRecord{}, &DataIntegrityError{
				Source: source, Field: string(FieldSiteStatus), Reason: "is not a known site status", Cause: err,
			}
		}
	}

	return rec, nil
}

func stringField(item ListItem, field Field, source string, required bool) (string, error) {
	raw, ok := item.Fields[string(field)]
	if !ok || raw == nil {
		if required {
			return "", missingField(source, field)
		}
		return "", nil
	}
	s, isString := raw.(string)
	if !isString {
		if required {
			return "", &DataIntegrityError{
				Source: source, Field: string(field), Reason: fmt.Sprintf("has type %T, want string", raw),
			}
		}
		return "", nil
	}
	if s == "" && required {
		return "", missingField(source, field)
	}
	return s, nil
}

func missingField(source string, field Field) error {
	return &DataIntegrityError{Source: source, Field: string(field), Reason: "is missing"}
}
