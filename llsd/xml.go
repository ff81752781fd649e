package llsd

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParseXML decodes a value in LLSD XML encoding. The payload must be a
// single <llsd> document wrapping one value element.
func ParseXML(data []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root, err := nextStartElement(dec)
	if err != nil {
		return nil, xmlErr(dec, "missing root element: %v", err)
	}
	if root.Name.Local != "llsd" {
		return nil, xmlErr(dec, "expected <llsd> root, got <%s>", root.Name.Local)
	}
	inner, err := nextStartElement(dec)
	if err != nil {
		return nil, xmlErr(dec, "empty <llsd> document")
	}
	v, err := parseXMLValue(dec, inner)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func xmlErr(dec *xml.Decoder, format string, args ...any) error {
	return &ParseError{Encoding: "xml", Offset: int(dec.InputOffset()), Msg: fmt.Sprintf(format, args...)}
}

// nextStartElement skips chardata, comments, and directives up to the next
// start tag. Returns io.EOF flavored errors when an end tag arrives first.
func nextStartElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.EndElement:
			return xml.StartElement{}, io.EOF
		}
	}
}

func parseXMLValue(dec *xml.Decoder, start xml.StartElement) (any, error) {
	switch start.Name.Local {
	case "undef":
		if err := dec.Skip(); err != nil {
			return nil, xmlErr(dec, "unterminated <undef>: %v", err)
		}
		return nil, nil
	case "boolean":
		text, err := elementText(dec, start)
		if err != nil {
			return nil, err
		}
		switch strings.TrimSpace(text) {
		case "true", "1":
			return true, nil
		default:
			return false, nil
		}
	case "integer":
		text, err := elementText(dec, start)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, xmlErr(dec, "bad integer %q", text)
		}
		return n, nil
	case "real":
		text, err := elementText(dec, start)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0.0, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, xmlErr(dec, "bad real %q", text)
		}
		return f, nil
	case "string":
		return elementText(dec, start)
	case "uuid":
		text, err := elementText(dec, start)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return uuid.Nil, nil
		}
		id, err := uuid.Parse(text)
		if err != nil {
			return nil, xmlErr(dec, "bad uuid %q", text)
		}
		return id, nil
	case "binary":
		encoding := "base64"
		for _, attr := range start.Attr {
			if attr.Name.Local == "encoding" {
				encoding = attr.Value
			}
		}
		text, err := elementText(dec, start)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		switch encoding {
		case "base64":
			out, err := base64.StdEncoding.DecodeString(text)
			if err != nil {
				return nil, xmlErr(dec, "bad base64 binary: %v", err)
			}
			return out, nil
		case "base16":
			out, err := hex.DecodeString(text)
			if err != nil {
				return nil, xmlErr(dec, "bad base16 binary: %v", err)
			}
			return out, nil
		default:
			return nil, xmlErr(dec, "unsupported binary encoding %q", encoding)
		}
	case "date":
		text, err := elementText(dec, start)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return time.Time{}, nil
		}
		for _, layout := range []string{dateLayout, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, text); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, xmlErr(dec, "bad date %q", text)
	case "uri":
		text, err := elementText(dec, start)
		if err != nil {
			return nil, err
		}
		return URI(text), nil
	case "array":
		out := []any{}
		for {
			child, err := nextStartElement(dec)
			if err == io.EOF {
				return out, nil
			}
			if err != nil {
				return nil, xmlErr(dec, "unterminated array: %v", err)
			}
			v, err := parseXMLValue(dec, child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	case "map":
		out := map[string]any{}
		for {
			child, err := nextStartElement(dec)
			if err == io.EOF {
				return out, nil
			}
			if err != nil {
				return nil, xmlErr(dec, "unterminated map: %v", err)
			}
			if child.Name.Local != "key" {
				return nil, xmlErr(dec, "expected <key> in map, got <%s>", child.Name.Local)
			}
			key, err := elementText(dec, child)
			if err != nil {
				return nil, err
			}
			valElem, err := nextStartElement(dec)
			if err != nil {
				return nil, xmlErr(dec, "map key %q has no value", key)
			}
			v, err := parseXMLValue(dec, valElem)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
	default:
		return nil, xmlErr(dec, "unknown element <%s>", start.Name.Local)
	}
}

// elementText collects the character data of start up to its end tag.
func elementText(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", xmlErr(dec, "unterminated <%s>: %v", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			out.Write(t)
		case xml.EndElement:
			return out.String(), nil
		case xml.StartElement:
			return "", xmlErr(dec, "unexpected <%s> inside <%s>", t.Name.Local, start.Name.Local)
		}
	}
}
