package match

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/moumitha43-ops/MAILER/internal/domain"
)

var errUnrecognisedDOB = errors.New("unrecognised DOB format")

// Exact layouts tried before the lenient fallback. Day first, month second.
var dobLayouts = []string{"02-01-2006", "02/01/2006"}

var integerRuns = regexp.MustCompile(`\d+`)

// ParseDOB parses a date of birth leniently. Exact DD-MM-YYYY and
// DD/MM/YYYY forms win; otherwise all integer runs are extracted and the
// first two become day/month candidates a, b. If a > 12 the order is
// (day, month) = (a, b); if b > 12 it is (b, a); when both are ambiguous the
// raw order is kept as given. A third run is the year, else the year
// defaults to domain.SentinelYear. Years below 100 are promoted by 2000.
// The result must form a real calendar date.
func ParseDOB(raw string) (domain.DOB, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return domain.DOB{}, errUnrecognisedDOB
	}

	for _, layout := range dobLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return domain.DOB{Day: t.Day(), Month: int(t.Month()), Year: t.Year()}, nil
		}
	}

	runs := integerRuns.FindAllString(s, -1)
	if len(runs) < 2 {
		return domain.DOB{}, errUnrecognisedDOB
	}

	a, err := strconv.Atoi(runs[0])
	if err != nil {
		return domain.DOB{}, errUnrecognisedDOB
	}
	b, err := strconv.Atoi(runs[1])
	if err != nil {
		return domain.DOB{}, errUnrecognisedDOB
	}

	year := domain.SentinelYear
	if len(runs) >= 3 {
		year, err = strconv.Atoi(runs[2])
		if err != nil {
			return domain.DOB{}, errUnrecognisedDOB
		}
		if year < 100 {
			year += 2000
		}
	}

	day, month := a, b
	if a <= 12 && b > 12 {
		day, month = b, a
	}

	dob := domain.DOB{Day: day, Month: month, Year: year}
	if !validCalendarDate(dob) {
		return domain.DOB{}, errUnrecognisedDOB
	}
	return dob, nil
}

// validCalendarDate rejects February-30-style values by round-tripping
// through time.Date, which normalizes overflowing components.
func validCalendarDate(d domain.DOB) bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return false
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == d.Year && int(t.Month()) == d.Month && t.Day() == d.Day
}

// FormatDOB renders a DOB in the canonical DD-MM-YYYY form.
func FormatDOB(d domain.DOB) string {
	return fmt.Sprintf("%02d-%02d-%04d", d.Day, d.Month, d.Year)
}
