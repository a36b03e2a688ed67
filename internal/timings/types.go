// Package timings holds the prayer-time domain types and the row mapper.
package timings

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DateKey is a day in DD-MM-YYYY form
type DateKey string

var dateKeyPattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// Valid reports whether the key is zero-padded DD-MM-YYYY
func (k DateKey) Valid() bool {
	return dateKeyPattern.MatchString(string(k))
}

// Time parses the key as a calendar date in UTC
func (k DateKey) Time() (time.Time, error) {
	return time.Parse("02-01-2006", string(k))
}

// DailyPrayerTimes holds the seven time-of-day fields for one day.
// Empty fields come from missing columns and are left out of JSON.
type DailyPrayerTimes struct {
	Fajr        string `json:"fajr,omitempty"`
	Sunrise     string `json:"sunrise,omitempty"`
	ZawaalStart string `json:"zawaal_start,omitempty"`
	Dhuhr       string `json:"dhuhr,omitempty"`
	Asr         string `json:"asr,omitempty"`
	Maghrib     string `json:"maghrib,omitempty"`
	Isha        string `json:"isha,omitempty"`
}

// PrayerTimesByDate maps a day to its prayer times
type PrayerTimesByDate map[DateKey]DailyPrayerTimes

// Keys returns the date keys in calendar order. Keys that do not parse sort last, lexically.
func (p PrayerTimesByDate) Keys() []DateKey {
	keys := make([]DateKey, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, erri := keys[i].Time()
		tj, errj := keys[j].Time()
		switch {
		case erri == nil && errj == nil:
			return ti.Before(tj)
		case erri == nil:
			return true
		case errj == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// SchoolOfThought is the jurisprudence tradition the timings follow
type SchoolOfThought string

const (
	// SchoolHanafi is the Hanafi school
	SchoolHanafi SchoolOfThought = "HANAFI"
	// SchoolShafiee is the Shafi'i school
	SchoolShafiee SchoolOfThought = "SHAFIEE"
)

// IsValid checks if the school is one of the known values
func (s SchoolOfThought) IsValid() bool {
	return s == SchoolHanafi || s == SchoolShafiee
}

// String returns the string representation of the school
func (s SchoolOfThought) String() string {
	return string(s)
}

// ParseSchoolOfThought parses a school name, case-insensitively
func ParseSchoolOfThought(s string) (SchoolOfThought, error) {
	school := SchoolOfThought(strings.ToUpper(strings.TrimSpace(s)))
	if !school.IsValid() {
		return "", fmt.Errorf("invalid school of thought: %q (must be %s or %s)", s, SchoolHanafi, SchoolShafiee)
	}
	return school, nil
}

// AllSchoolsOfThought lists the schools in display order
func AllSchoolsOfThought() []SchoolOfThought {
	return []SchoolOfThought{SchoolHanafi, SchoolShafiee}
}
