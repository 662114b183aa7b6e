package roster

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moumitha43-ops/MAILER/internal/domain"
	"github.com/moumitha43-ops/MAILER/internal/match"
)

// RowChecker runs the dry-run row validator against a roster source.
type RowChecker interface {
	Validate(src match.Source) (domain.ValidationReport, error)
}

// FileStore checks uploaded roster documents and installs them at the
// configured path. Check never touches disk, so a rejected upload leaves
// the installed roster intact.
type FileStore struct {
	path    string
	checker RowChecker
}

func NewFileStore(path string, checker RowChecker) *FileStore {
	return &FileStore{path: path, checker: checker}
}

// Check validates the uploaded document in memory.
func (s *FileStore) Check(content []byte) (domain.ValidationReport, error) {
	return s.checker.Validate(NewBytesSource(content))
}

// Save replaces the roster file. The write goes through a temp file in the
// same directory and a rename, so a concurrent matching pass reads either
// the old document or the new one, never a partial write.
func (s *FileStore) Save(content []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".roster-*")
	if err != nil {
		return fmt.Errorf("create temp roster: %w", err)
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write roster: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write roster: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install roster: %w", err)
	}
	return nil
}
