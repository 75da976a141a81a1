package rainfall

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntryWithDateAndClock(t *testing.T) {
	entry, err := ParseEntry(EntryForm{
		Station:  "2",
		Date:     "1403/07/25",
		Hour:     "3",
		Minute:   "0",
		Rainfall: "12.5",
	}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.StationID)
	assert.Equal(t, time.Date(2024, 10, 16, 3, 0, 0, 0, time.UTC), entry.Timestamp)
	assert.Equal(t, 12.5, entry.RainfallMM)
	assert.Equal(t, TimeBucket(""), entry.TimeBucket)
}

func TestParseEntryWithSeparateFieldsAndBucket(t *testing.T) {
	entry, err := ParseEntry(EntryForm{
		Station:   "۱",
		Year:      "۱۴۰۳",
		Month:     "۷",
		Day:       "۲۵",
		TimeRange: "18-21",
		Rainfall:  "۰",
	}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 16, 18, 0, 0, 0, time.UTC), entry.Timestamp)
	assert.Equal(t, Bucket1821, entry.TimeBucket)
	assert.Equal(t, 0.0, entry.RainfallMM)
}

func TestParseEntryCollectsFieldErrors(t *testing.T) {
	_, err := ParseEntry(EntryForm{
		Station:  "x",
		Date:     "1403/07/31",
		Hour:     "24",
		Rainfall: "-3",
	}, time.UTC)
	require.ErrorIs(t, err, ErrInvalidValue)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "station")
	assert.Contains(t, verr.Fields["date"], `"1403/07/31"`)
	assert.Contains(t, verr.Fields["hour"], `"24"`)
	assert.Contains(t, verr.Fields["rainfall_mm"], `"-3"`)
}

func TestParseEntryRejectsClockOutsideBucket(t *testing.T) {
	_, err := ParseEntry(EntryForm{
		Station:   "1",
		Date:      "1403/01/01",
		Hour:      "10",
		TimeRange: "00-03",
		Rainfall:  "1",
	}, time.UTC)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "time_range")
}

func TestParseEntryRequiresTime(t *testing.T) {
	_, err := ParseEntry(EntryForm{Station: "1", Date: "1403/01/01", Rainfall: "1"}, time.UTC)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "hour")
}

func TestObservationValidate(t *testing.T) {
	obs := sampleObservation()
	require.NoError(t, obs.Validate())

	obs.RainfallMM = -0.1
	assert.ErrorIs(t, obs.Validate(), ErrInvalidValue)

	obs = sampleObservation()
	obs.TimeBucket = "1-2"
	assert.ErrorIs(t, obs.Validate(), ErrInvalidValue)
}

func TestParseEntryRejectsSkippedWallClock(t *testing.T) {
	tehran, err := time.LoadLocation("Asia/Tehran")
	require.NoError(t, err)
	_, err = ParseEntry(EntryForm{
		Station:  "1",
		Date:     "1390/01/02",
		Hour:     "0",
		Minute:   "30",
		Rainfall: "1",
	}, tehran)
	require.ErrorIs(t, err, ErrInvalidValue)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields["date"], `"1390/01/02 00:30"`)
}
