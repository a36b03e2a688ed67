package timings

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/namaznow/timings-import/internal/logging"
	"github.com/namaznow/timings-import/internal/spreadsheet"
	"github.com/rs/zerolog"
)

// Source columns for the day and month of a row
const (
	ColumnDate  = "Date"
	ColumnMonth = "Month"
)

// fieldColumn binds a DailyPrayerTimes field to its source columns; the first present column wins.
type fieldColumn struct {
	field   string
	columns []string
	set     func(*DailyPrayerTimes, string)
}

var fieldColumns = []fieldColumn{
	{"fajr", []string{"Fajr/SehriEND"}, func(d *DailyPrayerTimes, v string) { d.Fajr = v }},
	{"sunrise", []string{"Tulu' START"}, func(d *DailyPrayerTimes, v string) { d.Sunrise = v }},
	// Some sheets carry a trailing space in this header.
	{"zawaal_start", []string{"ZawaalSTART ", "ZawaalSTART"}, func(d *DailyPrayerTimes, v string) { d.ZawaalStart = v }},
	{"dhuhr", []string{"Dhuhur/ZawaalEND"}, func(d *DailyPrayerTimes, v string) { d.Dhuhr = v }},
	{"asr", []string{"Asr"}, func(d *DailyPrayerTimes, v string) { d.Asr = v }},
	{"maghrib", []string{"Maghrib/GhurubEND/Iftaar"}, func(d *DailyPrayerTimes, v string) { d.Maghrib = v }},
	{"isha", []string{"Isha"}, func(d *DailyPrayerTimes, v string) { d.Isha = v }},
}

// Mapper converts spreadsheet rows into prayer times keyed by date
type Mapper struct {
	now    func() time.Time
	logger zerolog.Logger
}

// NewMapper creates a mapper that stamps keys with the current year
func NewMapper() *Mapper {
	return NewMapperWithClock(time.Now)
}

// NewMapperWithClock creates a mapper using now to pick the key year
func NewMapperWithClock(now func() time.Time) *Mapper {
	return &Mapper{
		now:    now,
		logger: logging.GetLogger("mapper"),
	}
}

// Map converts rows into PrayerTimesByDate. A later row with the same day and
// month replaces an earlier one. Time values are not validated and missing
// columns leave their field empty. Rows that cannot form a DD-MM-YYYY key
// (no Date or Month cell, or a non-integer value) are skipped.
func (m *Mapper) Map(rows []spreadsheet.Row) PrayerTimesByDate {
	year := m.now().Year()
	result := make(PrayerTimesByDate, len(rows))

	for i, row := range rows {
		key, ok := dateKey(row, year)
		if !ok {
			m.logger.Warn().
				Int("row", i+1).
				Interface("date", row[ColumnDate]).
				Interface("month", row[ColumnMonth]).
				Msg("Skipping row without a usable Date/Month")
			continue
		}

		var entry DailyPrayerTimes
		for _, fc := range fieldColumns {
			if v, ok := lookup(row, fc.columns); ok {
				fc.set(&entry, v)
			}
		}

		if _, exists := result[key]; exists {
			m.logger.Debug().Str("date_key", string(key)).Int("row", i+1).Msg("Row replaces earlier entry for the same day")
		}
		result[key] = entry
	}

	if missing := MissingColumns(rows); len(missing) > 0 {
		m.logger.Warn().Strs("fields", missing).Msg("Upload has no column for some prayer times")
	}
	m.logger.Debug().Int("rows", len(rows)).Int("entries", len(result)).Int("year", year).Msg("Mapped rows")

	return result
}

// MissingColumns lists the prayer-time fields that no row provides a value for
func MissingColumns(rows []spreadsheet.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	var missing []string
	for _, fc := range fieldColumns {
		found := false
		for _, row := range rows {
			if _, ok := lookup(row, fc.columns); ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, fc.field)
		}
	}
	return missing
}

func dateKey(row spreadsheet.Row, year int) (DateKey, bool) {
	day, okDay := row[ColumnDate]
	month, okMonth := row[ColumnMonth]
	if !okDay || !okMonth {
		return "", false
	}
	key := DateKey(fmt.Sprintf("%s-%s-%d", zeroPad(stringify(day), 2), zeroPad(stringify(month), 2), year))
	return key, key.Valid()
}

func lookup(row spreadsheet.Row, columns []string) (string, bool) {
	for _, col := range columns {
		if v, ok := row[col]; ok {
			return stringify(v), true
		}
	}
	return "", false
}

// stringify renders a cell value the way it reads in the sheet
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
