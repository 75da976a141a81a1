package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"rainlog/internal/calendar"
	rainfall "rainlog/internal/rainfall/domain"
)

const (
	SheetName   = "rainfall"
	FileName    = "rainfall_records.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Layout selects the column set of an export.
type Layout string

const (
	// LayoutColumns splits the Jalali timestamp into numeric columns.
	LayoutColumns Layout = "columns"
	// LayoutDate writes a YYYY/MM/DD date and the time range label.
	LayoutDate Layout = "date"
)

var (
	columnsHeaders = []string{"user", "station", "year", "month", "day", "hour", "minute", "rainfall_mm"}
	dateHeaders    = []string{"user", "station", "date", "time_range", "rainfall_mm"}
)

// ParseLayout accepts "columns" or "date". An empty value selects LayoutColumns.
func ParseLayout(raw string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(raw))) {
	case "", LayoutColumns:
		return LayoutColumns, nil
	case LayoutDate:
		return LayoutDate, nil
	default:
		return "", fmt.Errorf("export: unknown layout %q", raw)
	}
}

// Headers returns the header row of the layout.
func (l Layout) Headers() []string {
	src := columnsHeaders
	if l == LayoutDate {
		src = dateHeaders
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func (l Layout) row(v rainfall.ObservationView, loc *time.Location) []any {
	local := calendar.FromGregorian(v.Timestamp, loc)
	if l == LayoutDate {
		return []any{v.Username, v.StationName, local.Date.String(), string(v.TimeBucket), v.RainfallMM}
	}
	return []any{v.Username, v.StationName, local.Year, local.Month, local.Day, local.Hour, local.Minute, v.RainfallMM}
}

// Encoder writes observations as a single-sheet workbook.
type Encoder struct {
	layout Layout
	loc    *time.Location
}

// NewEncoder constructs an encoder. Timestamps are shown as wall clock in loc.
func NewEncoder(layout Layout, loc *time.Location) *Encoder {
	if layout == "" {
		layout = LayoutColumns
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Encoder{layout: layout, loc: loc}
}

// Layout returns the encoder's layout.
func (e *Encoder) Layout() Layout {
	return e.layout
}

// Encode writes rows in the given order under a header row. An empty slice
// produces a header-only sheet.
func (e *Encoder) Encode(w io.Writer, rows []rainfall.ObservationView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	headers := e.layout.Headers()
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	for i, v := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := e.layout.row(v, e.loc)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// BuildXLSX renders rows to an in-memory workbook.
func BuildXLSX(rows []rainfall.ObservationView, layout Layout, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(layout, loc).Encode(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
