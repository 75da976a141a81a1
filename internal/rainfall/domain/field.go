package rainfall

import (
	"fmt"
	"strings"
)

// Field names a single patchable attribute of an observation.
type Field string

const (
	FieldRainfall  Field = "rainfall_mm"
	FieldDate      Field = "date"
	FieldTime      Field = "time"
	FieldTimeRange Field = "time_range"
)

// ParseField checks raw against the inline-update allow-list.
func ParseField(raw string) (Field, error) {
	switch f := Field(strings.TrimSpace(raw)); f {
	case FieldRainfall, FieldDate, FieldTime, FieldTimeRange:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedField, raw)
	}
}
