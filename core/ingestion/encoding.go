// Package ingestion turns a loosely structured rate file into typed rate rows.
// Locate → sniff → read → normalize → validate. Nothing here is cached; the
// pricing package owns the table lifecycle.
package ingestion

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is a named decoder candidate
type Encoding struct {
	Name string
	enc  encoding.Encoding
	utf8 bool
}

// Known encodings
var (
	EncodingUTF8        = Encoding{Name: "utf-8", enc: unicode.UTF8BOM, utf8: true}
	EncodingWindows1252 = Encoding{Name: "windows-1252", enc: charmap.Windows1252}
	EncodingLatin1      = Encoding{Name: "iso-8859-1", enc: charmap.ISO8859_1}
	EncodingLatin9      = Encoding{Name: "iso-8859-15", enc: charmap.ISO8859_15}
)

// DefaultEncodings is the order candidates are tried in. Single-byte code
// pages accept any input, so UTF-8 must come first to mean anything.
func DefaultEncodings() []Encoding {
	return []Encoding{EncodingUTF8, EncodingWindows1252, EncodingLatin1}
}

var encodingAliases = map[string]Encoding{
	"utf-8":        EncodingUTF8,
	"utf8":         EncodingUTF8,
	"windows-1252": EncodingWindows1252,
	"cp1252":       EncodingWindows1252,
	"iso-8859-1":   EncodingLatin1,
	"latin-1":      EncodingLatin1,
	"latin1":       EncodingLatin1,
	"iso-8859-15":  EncodingLatin9,
	"latin-9":      EncodingLatin9,
}

// LookupEncoding resolves a configured encoding name
func LookupEncoding(name string) (Encoding, error) {
	enc, ok := encodingAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Encoding{}, fmt.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

// Decode converts data to UTF-8 text, dropping a UTF-8 byte order mark. It
// fails instead of substituting replacement characters.
func (e Encoding) Decode(data []byte) (string, error) {
	if e.utf8 && !utf8.Valid(data) {
		return "", fmt.Errorf("%s: invalid byte sequence", e.Name)
	}

	out, err := e.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", e.Name, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("%s: undefined byte in input", e.Name)
	}
	return string(out), nil
}
