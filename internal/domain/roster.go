package domain

// SentinelYear is used when a roster entry gives a day and month but no
// year. It is deliberately a non-leap year, so "29-02" without an explicit
// year is rejected rather than silently accepted.
const SentinelYear = 2001

// RosterRow is one raw record as read from the roster source.
// RowNum is 1-indexed over non-header data rows. Ephemeral: it exists only
// during a single matching or validation pass.
type RosterRow struct {
	RowNum     int
	Name       string
	Email      string
	DOBRaw     string
	Identifier string
}

// DOB is a parsed date of birth. Matching only ever looks at Day and Month;
// Year is retained for calendar validation and may be SentinelYear.
type DOB struct {
	Day   int
	Month int
	Year  int
}

// RowIssue records why a roster row failed validation. Informational only.
type RowIssue struct {
	RowNum int
	Name   string
	Email  string
	Reason string
}

// MatchRecord is a roster row whose day-and-month equals today. This is the
// unit of work handed to the dispatch coordinator.
type MatchRecord struct {
	RowNum     int
	Name       string
	Email      string
	Identifier string
}

// MatchResult is the outcome of one matching pass over a roster source.
// Matches and Skipped are disjoint; rows that validated but have no
// birthday today count only toward TotalRows.
type MatchResult struct {
	Matches   []MatchRecord
	Skipped   []RowIssue
	TotalRows int
}

// ValidRow is a normalized roster row produced by dry-run validation.
// DOB is canonical DD-MM-YYYY.
type ValidRow struct {
	RowNum     int
	Name       string
	Email      string
	DOB        string
	Identifier string
}

// ValidationReport is the result of a dry-run validation pass: upload-time
// feedback without the date filter.
type ValidationReport struct {
	Valid  []ValidRow
	Errors []RowIssue
}
