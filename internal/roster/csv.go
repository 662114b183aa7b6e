// Package roster provides roster source implementations for the matching
// engine. The canonical source is a CSV file with name, email, and
// dob/date_of_birth columns.
package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/moumitha43-ops/MAILER/internal/domain"
	"github.com/moumitha43-ops/MAILER/internal/match"
)

var (
	// ErrSourceNotFound means the roster file does not exist.
	ErrSourceNotFound = errors.New("roster source not found")
	// ErrInvalidSchema means the header is missing required columns. The
	// whole source is rejected before any row is processed.
	ErrInvalidSchema = errors.New("invalid roster schema")
)

// CSVSource reads roster rows from a CSV file.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Read opens the file, validates the header, and returns a streaming row
// reader. The caller owns Close.
func (s *CSVSource) Read() (match.RowReader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.path)
		}
		return nil, fmt.Errorf("open roster: %w", err)
	}

	rows, err := newRows(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	rows.closer = f
	return rows, nil
}

// BytesSource serves an in-memory CSV document. It backs the upload
// pre-flight check, which must validate a roster before it touches disk.
type BytesSource struct {
	data []byte
}

func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{data: data}
}

func (s *BytesSource) Read() (match.RowReader, error) {
	return newRows(bytes.NewReader(s.data))
}

// newRows validates the header and wraps the remaining records in a row
// reader. The caller attaches a closer when the underlying reader needs one.
func newRows(r io.Reader) (*csvRows, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: empty or unreadable header", ErrInvalidSchema)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	return &csvRows{cr: cr, cols: cols}, nil
}

// columns holds header indexes, -1 when the column is absent.
type columns struct {
	name     int
	email    int
	dob      int
	dobAlt   int
	ident    int
	identAlt int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{name: -1, email: -1, dob: -1, dobAlt: -1, ident: -1, identAlt: -1}
	for i, h := range header {
		// Tolerate a UTF-8 BOM on the first cell.
		h = strings.TrimPrefix(h, "\ufeff")
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name":
			cols.name = i
		case "email":
			cols.email = i
		case "dob":
			cols.dob = i
		case "date_of_birth":
			cols.dobAlt = i
		case "rollnumber":
			cols.ident = i
		case "roll_number":
			cols.identAlt = i
		}
	}

	if cols.name < 0 || cols.email < 0 {
		return columns{}, fmt.Errorf("%w: 'name' and 'email' columns are required", ErrInvalidSchema)
	}
	if cols.dob < 0 && cols.dobAlt < 0 {
		return columns{}, fmt.Errorf("%w: a 'dob' or 'date_of_birth' column is required", ErrInvalidSchema)
	}
	return cols, nil
}

type csvRows struct {
	closer io.Closer
	cr     *csv.Reader
	cols   columns
	n      int
}

// Next returns the next data row, 1-indexed. io.EOF terminates the stream.
func (r *csvRows) Next() (domain.RosterRow, error) {
	rec, err := r.cr.Read()
	if err != nil {
		return domain.RosterRow{}, err
	}
	r.n++

	return domain.RosterRow{
		RowNum:     r.n,
		Name:       field(rec, r.cols.name),
		Email:      field(rec, r.cols.email),
		DOBRaw:     firstNonEmpty(field(rec, r.cols.dob), field(rec, r.cols.dobAlt)),
		Identifier: firstNonEmpty(field(rec, r.cols.ident), field(rec, r.cols.identAlt)),
	}, nil
}

func (r *csvRows) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
