package match

import (
	"fmt"
	"regexp"

	"github.com/moumitha43-ops/MAILER/internal/domain"
)

// Conservative ASCII pattern: local part of letters/digits/._%+-, domain of
// letters/digits/.-, TLD of at least two letters.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// checkRow applies the validation rules in order and returns the parsed DOB,
// or the first failure reason. Fields arrive pre-trimmed from the source.
func checkRow(row domain.RosterRow) (domain.DOB, string) {
	if row.Name == "" {
		return domain.DOB{}, "missing name"
	}
	if row.Email == "" || !emailPattern.MatchString(row.Email) {
		return domain.DOB{}, fmt.Sprintf("invalid or missing email '%s'", row.Email)
	}
	if row.DOBRaw == "" {
		return domain.DOB{}, "missing date of birth"
	}
	dob, err := ParseDOB(row.DOBRaw)
	if err != nil {
		return domain.DOB{}, fmt.Sprintf("unrecognised DOB format: '%s'", row.DOBRaw)
	}
	return dob, ""
}

// checkRowAll collects every issue on the row instead of stopping at the
// first, for upload-time feedback. The rules are identical to checkRow, so a
// row with no issues here is guaranteed to pass checkRow.
func checkRowAll(row domain.RosterRow) (domain.DOB, []string) {
	var issues []string
	if row.Name == "" {
		issues = append(issues, "missing name")
	}
	if row.Email == "" {
		issues = append(issues, "missing email")
	} else if !emailPattern.MatchString(row.Email) {
		issues = append(issues, fmt.Sprintf("invalid email format: '%s'", row.Email))
	}

	var dob domain.DOB
	if row.DOBRaw == "" {
		issues = append(issues, "missing date of birth")
	} else {
		var err error
		dob, err = ParseDOB(row.DOBRaw)
		if err != nil {
			issues = append(issues, fmt.Sprintf("unrecognised DOB format: '%s'", row.DOBRaw))
		}
	}
	return dob, issues
}
