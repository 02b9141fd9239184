package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter renders indented JSON
type JSONFormatter struct {
	indent string
}

// NewJSONFormatter creates a JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{indent: "  "}
}

// Format implements Formatter
func (f *JSONFormatter) Format() Format { return FormatJSON }

// Render implements Formatter
func (f *JSONFormatter) Render(w io.Writer, report *Report) error {
	return f.encode(w, report)
}

// RenderBatch implements Formatter
func (f *JSONFormatter) RenderBatch(w io.Writer, report *BatchReport) error {
	return f.encode(w, report)
}

func (f *JSONFormatter) encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", f.indent)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
