package rainfall

import (
	"fmt"

	"rainlog/internal/calendar"
)

// TimeBucket labels one of the eight three-hour bands of a day.
type TimeBucket string

const (
	Bucket0003 TimeBucket = "00-03"
	Bucket0306 TimeBucket = "03-06"
	Bucket0609 TimeBucket = "06-09"
	Bucket0912 TimeBucket = "09-12"
	Bucket1215 TimeBucket = "12-15"
	Bucket1518 TimeBucket = "15-18"
	Bucket1821 TimeBucket = "18-21"
	Bucket2124 TimeBucket = "21-24"
)

var timeBuckets = []TimeBucket{
	Bucket0003, Bucket0306, Bucket0609, Bucket0912,
	Bucket1215, Bucket1518, Bucket1821, Bucket2124,
}

// TimeBuckets lists the bands in day order.
func TimeBuckets() []TimeBucket {
	out := make([]TimeBucket, len(timeBuckets))
	copy(out, timeBuckets)
	return out
}

// ParseTimeBucket accepts one of the eight band labels after digit normalisation.
func ParseTimeBucket(raw string) (TimeBucket, error) {
	b := TimeBucket(calendar.NormalizeDigits(raw))
	if !b.Valid() {
		return "", fmt.Errorf("%w: time range %q is not one of %v", ErrInvalidValue, raw, timeBuckets)
	}
	return b, nil
}

// Valid reports whether b is one of the fixed bands.
func (b TimeBucket) Valid() bool {
	for _, candidate := range timeBuckets {
		if b == candidate {
			return true
		}
	}
	return false
}

// StartHour returns the first hour of the band, or -1 for an invalid label.
func (b TimeBucket) StartHour() int {
	for i, candidate := range timeBuckets {
		if b == candidate {
			return i * 3
		}
	}
	return -1
}

// Contains reports whether hour falls inside the band.
func (b TimeBucket) Contains(hour int) bool {
	start := b.StartHour()
	return start >= 0 && hour >= start && hour < start+3
}

// BucketForHour returns the band containing hour.
func BucketForHour(hour int) (TimeBucket, bool) {
	if hour < 0 || hour > 23 {
		return "", false
	}
	return timeBuckets[hour/3], true
}
