package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rainlog/internal/calendar"
)

// FilterInput is the raw dashboard query string.
type FilterInput struct {
	Station   string
	Date      string
	StartDate string
	EndDate   string
}

// Filter is a parsed dashboard filter. Bounds that fail to parse are left
// unset and described in Notices.
type Filter struct {
	Input     FilterInput
	StationID int64
	From      time.Time
	To        time.Time
	Notices   []string
}

// ParseFilter converts Jalali day bounds to a half-open UTC range using wall
// clock in loc. A single Date takes precedence over StartDate and EndDate.
func ParseFilter(in FilterInput, loc *time.Location) Filter {
	f := Filter{Input: in}

	station := calendar.NormalizeDigits(in.Station)
	if station != "" && station != "all" {
		id, err := strconv.ParseInt(station, 10, 64)
		if err != nil || id <= 0 {
			f.Notices = append(f.Notices, fmt.Sprintf("فیلتر ایستگاه %q نادیده گرفته شد", in.Station))
		} else {
			f.StationID = id
		}
	}

	if strings.TrimSpace(in.Date) != "" {
		if start, end, ok := f.dayBounds(in.Date, loc); ok {
			f.From, f.To = start, end
		}
		return f
	}
	if strings.TrimSpace(in.StartDate) != "" {
		if start, _, ok := f.dayBounds(in.StartDate, loc); ok {
			f.From = start
		}
	}
	if strings.TrimSpace(in.EndDate) != "" {
		if _, end, ok := f.dayBounds(in.EndDate, loc); ok {
			f.To = end
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		f.Notices = append(f.Notices, fmt.Sprintf("تاریخ شروع %q بعد از تاریخ پایان %q است", in.StartDate, in.EndDate))
	}
	return f
}

func (f *Filter) dayBounds(raw string, loc *time.Location) (time.Time, time.Time, bool) {
	date, err := calendar.ParseDate(raw)
	if err != nil {
		f.Notices = append(f.Notices, fmt.Sprintf("تاریخ %q معتبر نیست و فیلتر آن اعمال نشد", raw))
		return time.Time{}, time.Time{}, false
	}
	start, end, err := calendar.DayRange(date, loc)
	if err != nil {
		f.Notices = append(f.Notices, fmt.Sprintf("تاریخ %q معتبر نیست و فیلتر آن اعمال نشد", raw))
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
