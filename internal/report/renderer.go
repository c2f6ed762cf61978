package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"

	apperrors "overcount/internal/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the embedded report template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"pct": func(x float64) string {
			return fmt.Sprintf("%.1f%%", 100*x)
		},
	}

	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, apperrors.ReportError("parsing report templates", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render produces the full report page. The template runs against a
// buffer first so a mid-render failure never leaves partial output.
func (r *Renderer) Render(m *Model) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "report.html", m); err != nil {
		return nil, apperrors.ReportError("rendering report", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders the report and writes it to path.
func (r *Renderer) WriteFile(path string, m *Model) error {
	html, err := r.Render(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return apperrors.ReportError("writing report file", err)
	}
	return nil
}
