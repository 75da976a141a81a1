package rainfall

import (
	"fmt"
	"time"

	"rainlog/internal/calendar"
)

// ApplyPatch sets a single field of o from untrusted text. Date and time
// patches are interpreted as wall clock in loc and keep the other half of the
// local reading. On error o is left unchanged.
func ApplyPatch(o *Observation, field Field, raw string, loc *time.Location) error {
	if o == nil {
		return fmt.Errorf("%w: nil observation", ErrInvalidValue)
	}
	next := *o
	local := calendar.FromGregorian(o.Timestamp, loc)

	switch field {
	case FieldRainfall:
		mm, err := ParseRainfall(raw)
		if err != nil {
			return err
		}
		next.RainfallMM = mm
	case FieldDate:
		date, err := calendar.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		local.Date = date
		if next.Timestamp, err = calendar.ToGregorian(local, loc); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
	case FieldTime:
		hour, minute, err := calendar.ParseClock(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		local.Hour, local.Minute = hour, minute
		if next.Timestamp, err = calendar.ToGregorian(local, loc); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		if next.TimeBucket != "" && !next.TimeBucket.Contains(hour) {
			next.TimeBucket = ""
		}
	case FieldTimeRange:
		bucket, err := ParseTimeBucket(raw)
		if err != nil {
			return err
		}
		local.Hour, local.Minute = bucket.StartHour(), 0
		if next.Timestamp, err = calendar.ToGregorian(local, loc); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		next.TimeBucket = bucket
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedField, string(field))
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*o = next
	return nil
}
