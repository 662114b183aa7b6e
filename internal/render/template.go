package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ErrTemplateNotFound is returned when the template file does not exist yet.
var ErrTemplateNotFound = errors.New("template file not found")

// TemplateFile stores the shared card template on disk. The whole file is
// the template; the {{name}} placeholder is substituted at render time.
type TemplateFile struct {
	path string
}

func NewTemplateFile(path string) *TemplateFile {
	return &TemplateFile{path: path}
}

func (t *TemplateFile) Load() (string, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, t.path)
		}
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

// Save replaces the stored template. Blank templates are rejected so a bad
// upload cannot silently break the next dispatch run.
func (t *TemplateFile) Save(html string) error {
	if strings.TrimSpace(html) == "" {
		return errors.New("template must not be empty")
	}
	if err := os.WriteFile(t.path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
