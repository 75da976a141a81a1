package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxStationNameLen = 100

var (
	ErrNotFound      = errors.New("station: not found")
	ErrInvalidName   = errors.New("station: invalid name")
	ErrDuplicateName = errors.New("station: name already exists")
	ErrStationInUse  = errors.New("station: referenced by observations")
)

// DefaultStationNames is the ordered seed list of stations.
var DefaultStationNames = []string{
	"بستک",
	"بندرعباس",
	"میناب",
	"بشاگرد",
	"حاجی\u200cآباد",
}

// Station is a named location where rainfall is measured.
type Station struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.ID <= 0 {
		return errors.New("station: empty id")
	}
	_, err := NormalizeName(s.Name)
	return err
}

// NormalizeName trims a station name and checks its length.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxStationNameLen {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, raw, maxStationNameLen)
	}
	return name, nil
}

// StationRepository manages station persistence.
type StationRepository interface {
	// EnsureByName creates the station when absent and reports whether it did.
	EnsureByName(ctx context.Context, name string) (*Station, bool, error)
	Get(ctx context.Context, id int64) (*Station, error)
	List(ctx context.Context) ([]Station, error)
	Rename(ctx context.Context, id int64, name string) (*Station, error)
	Delete(ctx context.Context, id int64) error
}
