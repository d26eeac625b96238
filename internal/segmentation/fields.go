package segmentation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zntrlhub/engage/internal/rql"
)

// FieldType controls how a query value is converted before binding.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeNumber FieldType = "number"
	FieldTypeTime   FieldType = "timestamp"
)

// FieldSpec maps a queryable field onto its behavioral_events column.
type FieldSpec struct {
	Column string
	Type   FieldType
}

// EventFields is the set of behavioral event fields a segmentation may
// filter on.
var EventFields = map[string]FieldSpec{
	"browser":        {Column: "e.browser", Type: FieldTypeText},
	"device":         {Column: "e.device", Type: FieldTypeText},
	"page_name":      {Column: "e.page_name", Type: FieldTypeText},
	"page_url":       {Column: "e.page_url", Type: FieldTypeText},
	"button_clicked": {Column: "e.button_clicked", Type: FieldTypeText},
	"location":       {Column: "e.location", Type: FieldTypeText},
	"timezone":       {Column: "e.timezone", Type: FieldTypeText},
	"latitude":       {Column: "e.latitude", Type: FieldTypeNumber},
	"longitude":      {Column: "e.longitude", Type: FieldTypeNumber},
	"time_stayed":    {Column: "e.time_stayed", Type: FieldTypeNumber},
	"created":        {Column: "e.created_at", Type: FieldTypeTime},
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// convert turns a parsed literal into the Go value bound for the column.
func (f FieldSpec) convert(field string, v rql.Value) (interface{}, error) {
	switch v.Kind {
	case rql.LiteralTrue, rql.LiteralFalse:
		return nil, fmt.Errorf("%w: field %s does not accept booleans", ErrInvalidQuery, field)
	case rql.LiteralNull:
		return nil, nil
	}

	switch f.Type {
	case FieldTypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s expects a number, got %q", ErrInvalidQuery, field, v.Text)
		}
		return n, nil
	case FieldTypeTime:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, v.Text); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%w: field %s expects a timestamp, got %q", ErrInvalidQuery, field, v.Text)
	default:
		return v.Text, nil
	}
}
