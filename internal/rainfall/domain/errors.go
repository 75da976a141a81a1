package rainfall

import "errors"

var (
	// ErrNotFound covers both absent observations and observations owned by another user.
	ErrNotFound = errors.New("rainfall: observation not found")
	// ErrInvalidValue is returned for values that cannot be parsed or violate an invariant.
	ErrInvalidValue = errors.New("rainfall: invalid value")
	// ErrUnsupportedField is returned when an inline update names a field outside the allow-list.
	ErrUnsupportedField = errors.New("rainfall: unsupported field")
)
