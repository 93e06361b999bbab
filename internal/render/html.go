package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/contractflow/contractflow/internal/models"
)

// Document is the view handed to the HTML template.
type Document struct {
	Title          string
	Description    string
	Status         models.ContractStatus
	TemplateType   models.TemplateType
	Version        int
	EffectiveDate  *time.Time
	ExpirationDate *time.Time
	Parties        []PartyView
	Sections       []models.Section
	GeneratedAt    time.Time
	Watermark      string
}

// PartyView is a party resolved to a display name.
type PartyView struct {
	DisplayName       string
	Type              models.PartyType
	Email             string
	SignatureRequired bool
	Signed            bool
}

// HTMLRenderer renders contract documents to HTML. An external template
// file overrides the built-in layout when present.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer loads the document template. templateDir may be empty, in
// which case the built-in layout is used; a contract.html.tmpl inside the
// directory takes precedence.
func NewHTMLRenderer(templateDir string) (*HTMLRenderer, error) {
	if templateDir != "" {
		path := filepath.Join(templateDir, "contract.html.tmpl")
		if _, err := os.Stat(path); err == nil {
			tmpl, err := template.ParseFiles(path)
			if err != nil {
				return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
			}
			return &HTMLRenderer{tmpl: tmpl}, nil
		}
	}

	tmpl, err := template.New("contract.html.tmpl").Parse(defaultDocumentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// Render produces the HTML document.
func (r *HTMLRenderer) Render(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

const defaultDocumentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: Georgia, serif; margin: 48px auto; max-width: 760px; color: #1a1a1a; }
  header { border-bottom: 2px solid #1a1a1a; margin-bottom: 24px; padding-bottom: 12px; }
  h1 { font-size: 26px; margin: 0 0 4px; }
  .meta { color: #555; font-size: 13px; }
  .status { text-transform: uppercase; letter-spacing: 1px; }
  section { margin-bottom: 20px; }
  h2 { font-size: 18px; margin-bottom: 6px; }
  h3 { font-size: 15px; margin-bottom: 4px; }
  .parties { margin: 20px 0; }
  .parties td { padding: 4px 16px 4px 0; font-size: 14px; }
  footer { margin-top: 36px; border-top: 1px solid #ccc; padding-top: 8px; color: #777; font-size: 12px; }
  {{if .Watermark}}
  .watermark {
    position: fixed; top: 40%; left: 10%; font-size: 96px; color: rgba(200, 40, 40, 0.15);
    transform: rotate(-30deg); pointer-events: none; z-index: 0;
  }
  {{end}}
</style>
</head>
<body>
{{if .Watermark}}<div class="watermark">{{.Watermark}}</div>{{end}}
<header>
  <h1>{{.Title}}</h1>
  <div class="meta">
    <span class="status">{{.Status}}</span> &middot; version {{.Version}}
    {{if .EffectiveDate}} &middot; effective {{.EffectiveDate.Format "2 January 2006"}}{{end}}
    {{if .ExpirationDate}} &middot; expires {{.ExpirationDate.Format "2 January 2006"}}{{end}}
  </div>
</header>
{{if .Description}}<p>{{.Description}}</p>{{end}}
{{if .Parties}}
<table class="parties">
  <tr><th align="left">Party</th><th align="left">Role</th><th align="left">Signature</th></tr>
  {{range .Parties}}
  <tr>
    <td>{{.DisplayName}}{{if .Email}} &lt;{{.Email}}&gt;{{end}}</td>
    <td>{{.Type}}</td>
    <td>{{if .Signed}}signed{{else if .SignatureRequired}}pending{{else}}&mdash;{{end}}</td>
  </tr>
  {{end}}
</table>
{{end}}
{{range .Sections}}
<section>
  <h2>{{.Title}}</h2>
  <p>{{.Text}}</p>
  {{range .Subsections}}
  <h3>{{.Title}}</h3>
  <p>{{.Text}}</p>
  {{end}}
</section>
{{end}}
<footer>Generated {{.GeneratedAt.Format "2 January 2006 15:04 MST"}}</footer>
</body>
</html>
`
