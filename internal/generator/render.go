package generator

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
)

// ReportContent is everything the renderer needs to assemble one report.
type ReportContent struct {
	Source        string
	SubSource     string
	GeneratedAt   time.Time
	CutoffDate    time.Time
	WeeklySummary string
	Items         []ItemAnalysis
	Highlights    []domain.Comment
}

// ItemAnalysis pairs a fetched item with its AI summary.
type ItemAnalysis struct {
	Item    domain.FeedbackItem
	Summary string
}

// Renderer assembles the HTML body of a report.
type Renderer interface {
	Render(content *ReportContent) (string, error)
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Source}}/{{.SubSource}} weekly report</title></head>
<body>
<h1>Weekly feedback report: {{.Source}}/{{.SubSource}}</h1>
<p>Window: {{.CutoffDate.Format "2006-01-02"}} to {{.GeneratedAt.Format "2006-01-02"}}</p>

<h2>Overview</h2>
<div>{{.WeeklySummary}}</div>

<h2>Top discussions</h2>
{{range .Items}}
<h3><a href="{{.Item.URL}}">{{.Item.Title}}</a></h3>
<p>{{.Item.CommentCount}} comments, score {{.Item.Score}}</p>
<div>{{.Summary}}</div>
{{end}}

{{if .Highlights}}
<h2>Highlighted comments</h2>
<ul>
{{range .Highlights}}
<li><b>{{.Author}}</b> ({{.Score}}): {{.Body}}</li>
{{end}}
</ul>
{{end}}

<h2>Quick links</h2>
<ul>
{{range .Items}}
<li><a href="{{.Item.URL}}">{{.Item.Title}}</a></li>
{{end}}
</ul>
</body>
</html>`

type htmlRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer returns the default template-based renderer.
func NewHTMLRenderer() Renderer {
	return &htmlRenderer{tmpl: template.Must(template.New("report").Parse(reportTemplate))}
}

func (r *htmlRenderer) Render(content *ReportContent) (string, error) {
	var buf bytes.Buffer

	if err := r.tmpl.Execute(&buf, content); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	return buf.String(), nil
}
