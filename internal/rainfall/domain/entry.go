package rainfall

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rainlog/internal/calendar"
)

// EntryForm is the raw text of the create and edit forms. The date is given
// either as Date (YYYY/MM/DD) or as Year, Month and Day. The time of day is
// given as Hour and Minute, as a TimeRange, or both.
type EntryForm struct {
	Station   string
	Date      string
	Year      string
	Month     string
	Day       string
	Hour      string
	Minute    string
	TimeRange string
	Rainfall  string
}

// Entry is a parsed and validated form submission.
type Entry struct {
	StationID  int64
	Local      calendar.DateTime
	Timestamp  time.Time
	RainfallMM float64
	TimeBucket TimeBucket
}

// ValidationError maps form field names to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "rainfall: invalid entry: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidValue).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidValue
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// ParseEntry validates a form submission and converts its Jalali date and
// time to a UTC instant using wall clock in loc.
func ParseEntry(form EntryForm, loc *time.Location) (Entry, error) {
	verr := &ValidationError{}
	var entry Entry

	stationID, err := strconv.ParseInt(calendar.NormalizeDigits(form.Station), 10, 64)
	if err != nil || stationID <= 0 {
		verr.add("station", fmt.Sprintf("ایستگاه %q معتبر نیست", form.Station))
	}
	entry.StationID = stationID

	date, dateOK := parseEntryDate(form, verr)

	bucket := TimeBucket("")
	if strings.TrimSpace(form.TimeRange) != "" {
		b, err := ParseTimeBucket(form.TimeRange)
		if err != nil {
			verr.add("time_range", fmt.Sprintf("بازه زمانی %q معتبر نیست", form.TimeRange))
		} else {
			bucket = b
		}
	}

	hour, minute, clockOK := parseEntryClock(form, bucket, verr)
	if clockOK && bucket != "" && !bucket.Contains(hour) {
		verr.add("time_range", fmt.Sprintf("ساعت %02d:%02d در بازه %s نیست", hour, minute, bucket))
	}

	mm, err := ParseRainfall(form.Rainfall)
	if err != nil {
		verr.add("rainfall_mm", fmt.Sprintf("میزان بارش %q معتبر نیست", form.Rainfall))
	}
	entry.RainfallMM = mm
	entry.TimeBucket = bucket

	if dateOK && clockOK {
		entry.Local = calendar.DateTime{Date: date, Hour: hour, Minute: minute}
		ts, err := calendar.ToGregorian(entry.Local, loc)
		if err != nil {
			verr.add("date", fmt.Sprintf("تاریخ و زمان %q در منطقه زمانی %s وجود ندارد", entry.Local.String(), loc))
		}
		entry.Timestamp = ts
	}

	if len(verr.Fields) > 0 {
		return Entry{}, verr
	}
	return entry, nil
}

func parseEntryDate(form EntryForm, verr *ValidationError) (calendar.Date, bool) {
	if strings.TrimSpace(form.Date) != "" {
		date, err := calendar.ParseDate(form.Date)
		if err != nil {
			verr.add("date", fmt.Sprintf("تاریخ %q معتبر نیست (YYYY/MM/DD)", form.Date))
			return calendar.Date{}, false
		}
		return date, true
	}
	if strings.TrimSpace(form.Year+form.Month+form.Day) == "" {
		verr.add("date", "تاریخ الزامی است")
		return calendar.Date{}, false
	}
	var fields [3]int
	for i, raw := range []string{form.Year, form.Month, form.Day} {
		n, err := strconv.Atoi(calendar.NormalizeDigits(raw))
		if err != nil {
			verr.add("date", fmt.Sprintf("تاریخ %q/%q/%q معتبر نیست", form.Year, form.Month, form.Day))
			return calendar.Date{}, false
		}
		fields[i] = n
	}
	date := calendar.Date{Year: fields[0], Month: fields[1], Day: fields[2]}
	if err := date.Validate(); err != nil {
		verr.add("date", fmt.Sprintf("تاریخ %q در تقویم شمسی وجود ندارد", date.String()))
		return calendar.Date{}, false
	}
	return date, true
}

func parseEntryClock(form EntryForm, bucket TimeBucket, verr *ValidationError) (int, int, bool) {
	rawHour := calendar.NormalizeDigits(form.Hour)
	rawMinute := calendar.NormalizeDigits(form.Minute)
	if rawHour == "" && rawMinute == "" {
		if bucket != "" {
			return bucket.StartHour(), 0, true
		}
		if strings.TrimSpace(form.TimeRange) == "" {
			verr.add("hour", "ساعت یا بازه زمانی الزامی است")
		}
		return 0, 0, false
	}
	hour, err := strconv.Atoi(rawHour)
	if err != nil || hour < 0 || hour > 23 {
		verr.add("hour", fmt.Sprintf("ساعت %q باید بین 0 تا 23 باشد", form.Hour))
		return 0, 0, false
	}
	minute := 0
	if rawMinute != "" {
		minute, err = strconv.Atoi(rawMinute)
		if err != nil || minute < 0 || minute > 59 {
			verr.add("minute", fmt.Sprintf("دقیقه %q باید بین 0 تا 59 باشد", form.Minute))
			return 0, 0, false
		}
	}
	return hour, minute, true
}

// Apply copies the parsed entry onto o, keeping identity and ownership fields.
func (e Entry) Apply(o *Observation) {
	o.StationID = e.StationID
	o.Timestamp = e.Timestamp
	o.RainfallMM = e.RainfallMM
	o.TimeBucket = e.TimeBucket
}
