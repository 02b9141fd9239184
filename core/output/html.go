package output

import (
	"bytes"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
th { background: #f3f3f3; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTMLFormatter renders the markdown report as a standalone HTML page
type HTMLFormatter struct {
	md goldmark.Markdown
}

// NewHTMLFormatter creates an HTML formatter
func NewHTMLFormatter() *HTMLFormatter {
	return &HTMLFormatter{md: goldmark.New(goldmark.WithExtensions(extension.Table))}
}

// Format implements Formatter
func (f *HTMLFormatter) Format() Format { return FormatHTML }

// Render implements Formatter
func (f *HTMLFormatter) Render(w io.Writer, report *Report) error {
	title := "Margin"
	if report.Result != nil {
		title += " " + report.Result.Profile.String()
	}
	return f.page(w, title, reportMarkdown(report))
}

// RenderBatch implements Formatter
func (f *HTMLFormatter) RenderBatch(w io.Writer, report *BatchReport) error {
	return f.page(w, "Scenarios "+report.File, batchMarkdown(report))
}

func (f *HTMLFormatter) page(w io.Writer, title, markdown string) error {
	var body bytes.Buffer
	if err := f.md.Convert([]byte(markdown), &body); err != nil {
		return err
	}
	return page.Execute(w, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body.String())})
}
