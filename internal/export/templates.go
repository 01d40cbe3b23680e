package export

import (
	"bytes"
	"html/template"
	"time"
)

var guideTemplate = template.Must(template.New("guide").Parse(guideTemplateText))

// TemplateData holds data for guide template rendering
type TemplateData struct {
	ActivityName string
	GeneratedAt  time.Time
	GeneratedBy  string
	Categories   []TemplateCategory
}

// TemplateCategory groups sections under a category heading
type TemplateCategory struct {
	Label    string
	Sections []TemplateSection
}

// TemplateSection holds one guide section for the template
type TemplateSection struct {
	Title     string
	Body      string
	Color     string
	IsDefault bool
	MediaRefs []string
}

// RenderGuideHTML renders the guide template with provided data
func RenderGuideHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := guideTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const guideTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.ActivityName}} — Instructor Guide</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; text-transform: uppercase; letter-spacing: 0.05em; font-size: 1rem; color: #555; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .section { padding: 1rem; margin: 1rem 0; border-left: 4px solid #999; background: #fafafa; page-break-inside: avoid; }
    .section h3 { margin: 0 0 0.5rem 0; }
    .custom { font-size: 0.75em; color: #888; margin-left: 0.5rem; }
    .media { font-size: 0.85em; color: #2d7dd2; word-break: break-all; }
  </style>
</head>
<body>
  <h1>{{.ActivityName}} — Instructor Guide</h1>
  <div class="meta">Generated {{.GeneratedAt.Format "Jan 2, 2006 15:04"}} by {{.GeneratedBy}}</div>
  {{range .Categories}}
  <h2>{{.Label}}</h2>
  {{range .Sections}}
  <div class="section" style="border-left-color: {{.Color}}">
    <h3>{{.Title}}{{if not .IsDefault}}<span class="custom">custom</span>{{end}}</h3>
    <p>{{.Body}}</p>
    {{range .MediaRefs}}<div class="media">{{.}}</div>{{end}}
  </div>
  {{end}}
  {{end}}
</body>
</html>`
