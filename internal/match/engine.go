// Package match implements the birthday matching engine: row validation,
// lenient date-of-birth parsing, and day+month selection against "today" in
// a configured timezone.
package match

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/moumitha43-ops/MAILER/internal/domain"
)

// Source yields roster rows. Read validates the source's header before any
// row is produced and fails fast on schema problems.
type Source interface {
	Read() (RowReader, error)
}

// RowReader streams roster rows in source order. Next returns io.EOF when
// the source is exhausted.
type RowReader interface {
	Next() (domain.RosterRow, error)
	Close() error
}

type Engine struct {
	loc   *time.Location
	clock func() time.Time
}

func New(loc *time.Location) *Engine {
	return &Engine{loc: loc, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Today returns the current day and month in the engine's location.
func (e *Engine) Today() (day, month int) {
	now := e.clock().In(e.loc)
	return now.Day(), int(now.Month())
}

// Match streams the source and classifies every row as a match, a skip, or
// neither. Today is computed once per call, so a run that straddles midnight
// stays internally consistent.
func (e *Engine) Match(src Source) (domain.MatchResult, error) {
	day, month := e.Today()
	log.Printf("matcher: checking birthdays for %02d-%02d (%s)", day, month, e.loc)

	r, err := src.Read()
	if err != nil {
		return domain.MatchResult{}, err
	}
	defer r.Close()

	var result domain.MatchResult
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.MatchResult{}, fmt.Errorf("read roster: %w", err)
		}
		result.TotalRows++

		dob, reason := checkRow(row)
		if reason != "" {
			result.Skipped = append(result.Skipped, domain.RowIssue{
				RowNum: row.RowNum,
				Name:   row.Name,
				Email:  row.Email,
				Reason: reason,
			})
			log.Printf("matcher: skip row %d: %s", row.RowNum, reason)
			continue
		}

		if dob.Day == day && dob.Month == month {
			result.Matches = append(result.Matches, domain.MatchRecord{
				RowNum:     row.RowNum,
				Name:       row.Name,
				Email:      row.Email,
				Identifier: row.Identifier,
			})
			log.Printf("matcher: match row %d: %s <%s>", row.RowNum, row.Name, row.Email)
		}
	}

	log.Printf("matcher: done, %d match(es), %d skipped, %d total rows",
		len(result.Matches), len(result.Skipped), result.TotalRows)
	return result, nil
}

// Validate runs the same per-row rules as Match without the date filter and
// collects all issues per row, for upload-time feedback.
func (e *Engine) Validate(src Source) (domain.ValidationReport, error) {
	r, err := src.Read()
	if err != nil {
		return domain.ValidationReport{}, err
	}
	defer r.Close()

	var report domain.ValidationReport
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.ValidationReport{}, fmt.Errorf("read roster: %w", err)
		}

		dob, issues := checkRowAll(row)
		if len(issues) > 0 {
			report.Errors = append(report.Errors, domain.RowIssue{
				RowNum: row.RowNum,
				Name:   row.Name,
				Email:  row.Email,
				Reason: strings.Join(issues, "; "),
			})
			continue
		}

		report.Valid = append(report.Valid, domain.ValidRow{
			RowNum:     row.RowNum,
			Name:       row.Name,
			Email:      row.Email,
			DOB:        FormatDOB(dob),
			Identifier: row.Identifier,
		})
	}

	return report, nil
}
