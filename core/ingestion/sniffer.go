package ingestion

import (
	"fmt"
	"sort"
	"strings"

	"pharma-margin/internal/errors"
)

// SourceKind distinguishes delimited text from spreadsheets
type SourceKind string

const (
	KindDelimited   SourceKind = "delimited"
	KindSpreadsheet SourceKind = "spreadsheet"
)

// Format is what sniffing learned about a source
type Format struct {
	Kind SourceKind `json:"kind"`

	// Encoding is empty for spreadsheets
	Encoding string `json:"encoding,omitempty"`

	// Delimiter is zero for spreadsheets
	Delimiter rune `json:"delimiter,omitempty"`

	// HeaderRow is the 0-based line (or sheet row) of the header
	HeaderRow int `json:"header_row"`

	// Sheet names the spreadsheet tab that was read
	Sheet string `json:"sheet,omitempty"`
}

// DelimiterName renders the delimiter for humans
func (f Format) DelimiterName() string {
	switch f.Delimiter {
	case 0:
		return "-"
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	default:
		return string(f.Delimiter)
	}
}

// FormatCandidate is one way of reading decoded text. Candidates are
// produced in preference order and tried until one yields a wide enough table.
type FormatCandidate struct {
	Encoding  Encoding
	Delimiter rune
	HeaderRow int
}

// Format returns the format this candidate stands for
func (c FormatCandidate) Format() Format {
	return Format{
		Kind:      KindDelimited,
		Encoding:  c.Encoding.Name,
		Delimiter: c.Delimiter,
		HeaderRow: c.HeaderRow,
	}
}

// String implements Stringer
func (c FormatCandidate) String() string {
	return fmt.Sprintf("%s/%q/row %d", c.Encoding.Name, c.Delimiter, c.HeaderRow)
}

// Sniffer determines encoding, header row and delimiter of raw bytes
type Sniffer struct {
	opts Options
}

// NewSniffer creates a sniffer
func NewSniffer(opts Options) *Sniffer {
	return &Sniffer{opts: opts}
}

// Decode returns the text under the first encoding that decodes data cleanly
func (s *Sniffer) Decode(data []byte) (Encoding, string, error) {
	tried := make([]string, 0, len(s.opts.Encodings))
	var lastErr error
	for _, enc := range s.opts.Encodings {
		text, err := enc.Decode(data)
		if err == nil {
			return enc, text, nil
		}
		tried = append(tried, enc.Name)
		lastErr = err
	}
	return Encoding{}, "", errors.UnreadableEncoding(tried, lastErr)
}

// IsHeader reports whether a line carries the header markers
func (s *Sniffer) IsHeader(line string) bool {
	upper := strings.ToUpper(line)
	if !strings.Contains(upper, strings.ToUpper(s.opts.ClusterMarker)) {
		return false
	}
	if s.opts.RequireSupplyMarker && !strings.Contains(upper, strings.ToUpper(s.opts.SupplyMarker)) {
		return false
	}
	return true
}

// FindHeader returns the index of the first header line
func (s *Sniffer) FindHeader(lines []string) (int, error) {
	for i, line := range lines {
		if s.IsHeader(line) {
			return i, nil
		}
	}
	return -1, errors.HeaderNotFound(s.opts.ClusterMarker, preview(lines, s.opts.PreviewLines))
}

// RankDelimiters orders candidate delimiters by their count on the header
// line, highest first. Ties keep configuration order.
func (s *Sniffer) RankDelimiters(header string) []rune {
	ranked := make([]rune, len(s.opts.Delimiters))
	copy(ranked, s.opts.Delimiters)
	sort.SliceStable(ranked, func(i, j int) bool {
		return strings.Count(header, string(ranked[i])) > strings.Count(header, string(ranked[j]))
	})
	return ranked
}

// Candidates decodes data and returns the ordered format candidates together
// with the decoded lines.
func (s *Sniffer) Candidates(data []byte) ([]FormatCandidate, []string, error) {
	if len(s.opts.Delimiters) == 0 {
		return nil, nil, errors.Config("no delimiter candidates configured")
	}

	enc, text, err := s.Decode(data)
	if err != nil {
		return nil, nil, err
	}

	lines := splitLines(text)
	header, err := s.FindHeader(lines)
	if err != nil {
		return nil, nil, err
	}

	delims := s.RankDelimiters(lines[header])
	candidates := make([]FormatCandidate, 0, len(delims))
	for _, d := range delims {
		candidates = append(candidates, FormatCandidate{Encoding: enc, Delimiter: d, HeaderRow: header})
	}
	return candidates, lines, nil
}

// Sniff returns the preferred format without reading the table
func (s *Sniffer) Sniff(data []byte) (Format, error) {
	candidates, _, err := s.Candidates(data)
	if err != nil {
		return Format{}, err
	}
	return candidates[0].Format(), nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

const maxPreviewChars = 400

func preview(lines []string, n int) string {
	if n <= 0 {
		n = 5
	}
	if len(lines) < n {
		n = len(lines)
	}
	p := strings.Join(lines[:n], "\n")
	if r := []rune(p); len(r) > maxPreviewChars {
		p = string(r[:maxPreviewChars]) + "..."
	}
	return p
}
