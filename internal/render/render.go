// Package render produces the personalized notification artifact for one
// recipient from the shared HTML card template.
package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Artifact is the rendered content for one recipient: the card written to
// the output directory plus the email body wrapping it.
type Artifact struct {
	HTMLPath string
	Body     string
}

var unsafeChars = regexp.MustCompile(`[^\w\-]`)

// CardRenderer personalizes the template by substituting the {{name}}
// placeholder and persists one HTML card per recipient. Rendering is
// deterministic for a given template and name, so failures here are never
// retried by the dispatcher.
type CardRenderer struct {
	outputDir string
}

func NewCardRenderer(outputDir string) *CardRenderer {
	return &CardRenderer{outputDir: outputDir}
}

func (r *CardRenderer) Render(name, identifier, templateHTML string) (Artifact, error) {
	if strings.TrimSpace(templateHTML) == "" {
		return Artifact{}, errors.New("template is empty")
	}

	personalised := strings.ReplaceAll(templateHTML, "{{name}}", name)

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create output dir: %w", err)
	}

	base := identifier
	if base == "" {
		base = name
	}
	htmlPath := filepath.Join(r.outputDir, safeFilename(base)+".html")
	if err := os.WriteFile(htmlPath, []byte(personalised), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write card: %w", err)
	}

	return Artifact{HTMLPath: htmlPath, Body: buildBody(personalised)}, nil
}

// buildBody wraps the personalized card in a minimal mail-client-friendly
// frame.
func buildBody(cardHTML string) string {
	return `<html>
  <body style="margin:0;text-align:center;background:#f2f2f2;padding:20px;">
    <div style="display:inline-block;max-width:100%;border-radius:12px;overflow:hidden;">
` + cardHTML + `
    </div>
  </body>
</html>
`
}

// safeFilename reduces a name or identifier to a filesystem-safe base name.
func safeFilename(v string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(v, "_"), "_")
	if s == "" {
		return "user"
	}
	return s
}
