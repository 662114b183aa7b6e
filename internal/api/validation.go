package api

import (
	"fmt"
	"strings"
	"time"
)

func validateTemplateRequest(req TemplateRequest) error {
	if strings.TrimSpace(req.HTML) == "" {
		return fmt.Errorf("html is required")
	}
	return nil
}

// parseHistoryDate validates the ?date= query parameter and returns the
// [from, to) bounds of that calendar day in the service location. An empty
// value means today.
func parseHistoryDate(raw string, loc *time.Location, now time.Time) (day string, from, to time.Time, err error) {
	t := now.In(loc)
	if raw != "" {
		t, err = time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
		}
	}
	from = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return from.Format("2006-01-02"), from, from.AddDate(0, 0, 1), nil
}
