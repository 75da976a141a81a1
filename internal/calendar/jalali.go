// Package calendar converts between the solar Hijri (Jalali) calendar used for
// entry and display and the Gregorian instants used for storage.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidCalendarDate is returned for impossible Jalali dates or clock values.
	ErrInvalidCalendarDate = errors.New("calendar: invalid jalali date")
	// ErrInvalidValue is returned when free-form time input cannot be parsed.
	ErrInvalidValue = errors.New("calendar: invalid value")
)

const (
	MinYear = 1
	MaxYear = 9377

	daysPerCycle = 33*365 + 8
)

// 1 Farvardin 1403 fell on 20 March 2024.
var (
	anchor     = Date{Year: 1403, Month: 1, Day: 1}
	anchorDays = dayNumber(anchor)
	anchorUnix = civilDays(2024, time.March, 20)
)

// Date is a Jalali calendar day.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateTime is a Jalali wall-clock time with minute precision.
type DateTime struct {
	Date
	Hour   int
	Minute int
}

// IsLeap reports whether a Jalali year has 366 days (33-year arithmetic cycle).
func IsLeap(year int) bool {
	switch mod(year, 33) {
	case 1, 5, 9, 13, 17, 22, 26, 30:
		return true
	}
	return false
}

// DaysInMonth returns the length of a Jalali month, or 0 for an invalid month.
func DaysInMonth(year, month int) int {
	switch {
	case month >= 1 && month <= 6:
		return 31
	case month >= 7 && month <= 11:
		return 30
	case month == 12:
		if IsLeap(year) {
			return 30
		}
		return 29
	}
	return 0
}

// Validate checks the date against Jalali month lengths.
func (d Date) Validate() error {
	if d.Year < MinYear || d.Year > MaxYear {
		return fmt.Errorf("%w: year %d is out of range", ErrInvalidCalendarDate, d.Year)
	}
	if d.Month < 1 || d.Month > 12 {
		return fmt.Errorf("%w: month %d does not exist", ErrInvalidCalendarDate, d.Month)
	}
	if d.Day < 1 || d.Day > DaysInMonth(d.Year, d.Month) {
		return fmt.Errorf("%w: day %d does not exist in month %d of %d", ErrInvalidCalendarDate, d.Day, d.Month, d.Year)
	}
	return nil
}

// String formats the date as YYYY/MM/DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

// Validate checks the date and the clock fields.
func (dt DateTime) Validate() error {
	if err := dt.Date.Validate(); err != nil {
		return err
	}
	if dt.Hour < 0 || dt.Hour > 23 {
		return fmt.Errorf("%w: hour %d is outside 0-23", ErrInvalidCalendarDate, dt.Hour)
	}
	if dt.Minute < 0 || dt.Minute > 59 {
		return fmt.Errorf("%w: minute %d is outside 0-59", ErrInvalidCalendarDate, dt.Minute)
	}
	return nil
}

// Clock formats the time of day as HH:MM.
func (dt DateTime) Clock() string {
	return fmt.Sprintf("%02d:%02d", dt.Hour, dt.Minute)
}

// String formats the value as YYYY/MM/DD HH:MM.
func (dt DateTime) String() string {
	return dt.Date.String() + " " + dt.Clock()
}

// ToGregorian interprets dt as wall-clock time in loc and returns the UTC instant.
// A reading skipped by a daylight-saving jump in loc does not exist and is
// rejected with ErrInvalidCalendarDate.
func ToGregorian(dt DateTime, loc *time.Location) (time.Time, error) {
	if err := dt.Validate(); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := gregorianDay(dt.Date)
	local := time.Date(y, m, d, dt.Hour, dt.Minute, 0, 0, loc)
	if ly, lm, ld := local.Date(); ly != y || lm != m || ld != d || local.Hour() != dt.Hour || local.Minute() != dt.Minute {
		return time.Time{}, fmt.Errorf("%w: %q does not exist in %s", ErrInvalidCalendarDate, dt.String(), loc)
	}
	return local.UTC(), nil
}

// FromGregorian returns the Jalali wall-clock reading of t in loc.
func FromGregorian(t time.Time, loc *time.Location) DateTime {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	y, m, d := local.Date()
	days := civilDays(y, m, d) - anchorUnix + anchorDays
	return DateTime{Date: dateFromDayNumber(days), Hour: local.Hour(), Minute: local.Minute()}
}

// DayRange returns the half-open UTC range [start, end) covering the Jalali day d in loc.
func DayRange(d Date, loc *time.Location) (time.Time, time.Time, error) {
	if err := d.Validate(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, day := gregorianDay(d)
	start := time.Date(y, m, day, 0, 0, 0, 0, loc)
	end := time.Date(y, m, day+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC(), nil
}

// ParseDate parses a YYYY/MM/DD Jalali date. Persian and Arabic-Indic digits are accepted.
func ParseDate(raw string) (Date, error) {
	value := NormalizeDigits(raw)
	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q is not in YYYY/MM/DD form", ErrInvalidCalendarDate, raw)
	}
	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Date{}, fmt.Errorf("%w: %q is not in YYYY/MM/DD form", ErrInvalidCalendarDate, raw)
		}
		fields[i] = n
	}
	d := Date{Year: fields[0], Month: fields[1], Day: fields[2]}
	if err := d.Validate(); err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return d, nil
}

// ParseClock parses HH:MM. When strict parsing fails the value is split on ':'
// and empty parts count as zero, so "7:" reads as 07:00.
func ParseClock(raw string) (int, int, error) {
	value := NormalizeDigits(raw)
	if t, err := time.Parse("15:04", value); err == nil {
		return t.Hour(), t.Minute(), nil
	}
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidValue, raw)
	}
	var fields [2]int
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidValue, raw)
		}
		fields[i] = n
	}
	hour, minute := fields[0], fields[1]
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q is outside 00:00-23:59", ErrInvalidValue, raw)
	}
	return hour, minute, nil
}

func gregorianDay(d Date) (int, time.Month, int) {
	offset := dayNumber(d) - anchorDays
	t := time.Date(2024, time.March, 20+offset, 0, 0, 0, 0, time.UTC)
	return t.Date()
}

// dayNumber counts days from 1 Farvardin of year 1.
func dayNumber(d Date) int {
	y := d.Year - 1
	cycles := floorDiv(y, 33)
	rem := y - cycles*33
	leaps := cycles * 8
	for r := 1; r <= rem; r++ {
		if IsLeap(r) {
			leaps++
		}
	}
	return y*365 + leaps + monthOffset(d.Month) + d.Day - 1
}

func dateFromDayNumber(n int) Date {
	cycles := floorDiv(n, daysPerCycle)
	rem := n - cycles*daysPerCycle
	year := cycles*33 + 1
	for {
		length := 365
		if IsLeap(year) {
			length = 366
		}
		if rem < length {
			break
		}
		rem -= length
		year++
	}
	month := 1
	for month < 12 {
		dim := DaysInMonth(year, month)
		if rem < dim {
			break
		}
		rem -= dim
		month++
	}
	return Date{Year: year, Month: month, Day: rem + 1}
}

func monthOffset(month int) int {
	if month <= 7 {
		return (month - 1) * 31
	}
	return 186 + (month-7)*30
}

func civilDays(y int, m time.Month, d int) int {
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
