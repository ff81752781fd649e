package llsd

import (
	"bytes"
	"fmt"
)

// LLSD values map onto Go types as follows:
//
//	undef    nil
//	boolean  bool
//	integer  int
//	real     float64
//	string   string
//	uuid     uuid.UUID
//	binary   []byte
//	date     time.Time
//	uri      llsd.URI
//	array    []any
//	map      map[string]any
//
// Parsers only ever produce these types. The formatter additionally accepts
// the smaller integer and float widths and converts them.

// URI distinguishes LLSD uri values from plain strings.
type URI string

// Map is the Go shape of an LLSD map.
type Map = map[string]any

// Array is the Go shape of an LLSD array.
type Array = []any

// ParseError reports where and why a payload failed to parse.
type ParseError struct {
	Encoding string
	Offset   int
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llsd: %s parse failed at offset %d: %s", e.Encoding, e.Offset, e.Msg)
}

// Binary LLSD headers. Emitters disagree on the exact spelling, so both
// must be recognized.
var binaryHeaders = [][]byte{
	[]byte("<? LLSD/Binary ?>"),
	[]byte("<?llsd/binary?>"),
}

// Parse decodes a payload in any of the three LLSD encodings, selecting the
// parser by inspecting the first non-whitespace bytes: a binary header line
// selects binary, a leading '<' selects XML, anything else is notation.
func Parse(data []byte) (any, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	for _, header := range binaryHeaders {
		if bytes.HasPrefix(trimmed, header) {
			return ParseBinary(trimmed)
		}
	}
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return ParseXML(trimmed)
	}
	return ParseNotation(trimmed)
}
