package rainfall

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"rainlog/internal/calendar"
)

// Observation is a single rainfall measurement at a station.
type Observation struct {
	ID         int64
	UserID     int64
	StationID  int64
	Timestamp  time.Time
	RainfallMM float64
	TimeBucket TimeBucket
	CreatedAt  time.Time
}

// ObservationView is an observation joined with its owner and station names.
type ObservationView struct {
	Observation
	Username    string
	StationName string
}

// Validate checks observation invariants.
func (o Observation) Validate() error {
	if o.UserID <= 0 {
		return fmt.Errorf("%w: empty user id", ErrInvalidValue)
	}
	if o.StationID <= 0 {
		return fmt.Errorf("%w: empty station id", ErrInvalidValue)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("%w: empty timestamp", ErrInvalidValue)
	}
	if err := ValidateRainfall(o.RainfallMM); err != nil {
		return err
	}
	if o.TimeBucket != "" && !o.TimeBucket.Valid() {
		return fmt.Errorf("%w: time range %q is not one of the fixed bands", ErrInvalidValue, string(o.TimeBucket))
	}
	return nil
}

// Local returns the Jalali wall-clock reading of the observation in loc.
func (o Observation) Local(loc *time.Location) calendar.DateTime {
	return calendar.FromGregorian(o.Timestamp, loc)
}

// ValidateRainfall rejects negative, NaN and infinite depths.
func ValidateRainfall(mm float64) error {
	if math.IsNaN(mm) || math.IsInf(mm, 0) {
		return fmt.Errorf("%w: rainfall %v is not a finite number", ErrInvalidValue, mm)
	}
	if mm < 0 {
		return fmt.Errorf("%w: rainfall %v is negative", ErrInvalidValue, mm)
	}
	return nil
}

// ParseRainfall parses a depth in millimetres. Persian digits and the Arabic
// decimal separator are accepted.
func ParseRainfall(raw string) (float64, error) {
	value := strings.ReplaceAll(calendar.NormalizeDigits(raw), "٫", ".")
	if value == "" {
		return 0, fmt.Errorf("%w: rainfall is required", ErrInvalidValue)
	}
	mm, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: rainfall %q is not a number", ErrInvalidValue, raw)
	}
	if err := ValidateRainfall(mm); err != nil {
		return 0, fmt.Errorf("rainfall %q: %w", raw, err)
	}
	return mm, nil
}

// Query selects observations. Zero values disable a filter; the time range is half-open.
type Query struct {
	UserID    int64
	StationID int64
	From      time.Time
	To        time.Time
	Ascending bool
}

// Match reports whether o satisfies the query filters.
func (q Query) Match(o Observation) bool {
	if q.UserID != 0 && o.UserID != q.UserID {
		return false
	}
	if q.StationID != 0 && o.StationID != q.StationID {
		return false
	}
	if !q.From.IsZero() && o.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !o.Timestamp.Before(q.To) {
		return false
	}
	return true
}

// Repository persists observations. Reads and writes are scoped to the owning
// user; a record owned by someone else is reported as ErrNotFound.
type Repository interface {
	Create(ctx context.Context, obs *Observation) error
	Get(ctx context.Context, userID, id int64) (*ObservationView, error)
	// Mutate loads the record, applies fn and persists the result atomically.
	// Nothing is written when fn returns an error.
	Mutate(ctx context.Context, userID, id int64, fn func(*Observation) error) (*Observation, error)
	Delete(ctx context.Context, userID, id int64) (*Observation, error)
	List(ctx context.Context, query Query) ([]ObservationView, error)
}
