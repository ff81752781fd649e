package llsd

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02T15:04:05.999999Z07:00"

// FormatNotation serializes v as LLSD notation. Map keys are emitted in
// sorted order so the same value always produces the same bytes.
func FormatNotation(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := formatNotation(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatNotation(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteByte('!')
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int:
		buf.WriteByte('i')
		buf.WriteString(strconv.Itoa(val))
	case int8:
		return formatNotation(buf, int(val))
	case int16:
		return formatNotation(buf, int(val))
	case int32:
		return formatNotation(buf, int(val))
	case int64:
		return formatNotation(buf, int(val))
	case uint:
		return formatNotation(buf, int(val))
	case uint8:
		return formatNotation(buf, int(val))
	case uint16:
		return formatNotation(buf, int(val))
	case uint32:
		return formatNotation(buf, int(val))
	case float32:
		return formatNotation(buf, float64(val))
	case float64:
		buf.WriteByte('r')
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case string:
		writeNotationString(buf, val, '\'')
	case uuid.UUID:
		buf.WriteByte('u')
		buf.WriteString(val.String())
	case []byte:
		buf.WriteString(`b64"`)
		buf.WriteString(base64.StdEncoding.EncodeToString(val))
		buf.WriteByte('"')
	case time.Time:
		buf.WriteByte('d')
		writeNotationString(buf, val.UTC().Format(dateLayout), '"')
	case URI:
		buf.WriteByte('l')
		writeNotationString(buf, string(val), '"')
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := formatNotation(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for key := range val {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNotationString(buf, key, '\'')
			buf.WriteByte(':')
			if err := formatNotation(buf, val[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("llsd: cannot format value of type %T", v)
	}
	return nil
}

func writeNotationString(buf *bytes.Buffer, s string, quote byte) {
	buf.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == quote {
			buf.WriteByte('\\')
		}
		buf.WriteByte(c)
	}
	buf.WriteByte(quote)
}

// ParseNotation decodes a value in LLSD notation encoding.
func ParseNotation(data []byte) (any, error) {
	p := &notationParser{data: data}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.data) {
		return nil, p.errf("trailing data after value")
	}
	return v, nil
}

type notationParser struct {
	data []byte
	pos  int
}

func (p *notationParser) errf(format string, args ...any) error {
	return &ParseError{Encoding: "notation", Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *notationParser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *notationParser) peek() (byte, error) {
	if p.pos >= len(p.data) {
		return 0, p.errf("unexpected end of input")
	}
	return p.data[p.pos], nil
}

func (p *notationParser) take(n int) ([]byte, error) {
	if p.pos+n > len(p.data) {
		return nil, p.errf("unexpected end of input")
	}
	out := p.data[p.pos : p.pos+n]
	p.pos += n
	return out, nil
}

// matchWord consumes rest if it (or its uppercase form) follows the cursor.
// Single-letter boolean spellings like 't' leave nothing to match.
func (p *notationParser) matchWord(rest string) {
	if p.pos+len(rest) > len(p.data) {
		return
	}
	next := string(p.data[p.pos : p.pos+len(rest)])
	if next == rest || next == strings.ToUpper(rest) {
		p.pos += len(rest)
	}
}

func (p *notationParser) parseValue() (any, error) {
	p.skipSpace()
	c, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch c {
	case '!':
		p.pos++
		return nil, nil
	case '1':
		p.pos++
		return true, nil
	case '0':
		p.pos++
		return false, nil
	case 't', 'T':
		p.pos++
		p.matchWord("rue")
		return true, nil
	case 'f', 'F':
		p.pos++
		p.matchWord("alse")
		return false, nil
	case 'i':
		p.pos++
		return p.parseInteger()
	case 'r':
		p.pos++
		return p.parseReal()
	case 'u':
		p.pos++
		raw, err := p.take(36)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(string(raw))
		if err != nil {
			return nil, p.errf("bad uuid: %v", err)
		}
		return id, nil
	case 's':
		p.pos++
		return p.parseSizedString()
	case '"', '\'':
		return p.parseDelimitedString()
	case 'l':
		p.pos++
		s, err := p.parseDelimitedString()
		if err != nil {
			return nil, err
		}
		return URI(s), nil
	case 'd':
		p.pos++
		s, err := p.parseDelimitedString()
		if err != nil {
			return nil, err
		}
		return parseDate(s, p)
	case 'b':
		p.pos++
		return p.parseBinary()
	case '[':
		p.pos++
		return p.parseArray()
	case '{':
		p.pos++
		return p.parseMap()
	default:
		return nil, p.errf("unexpected character %q", c)
	}
}

func (p *notationParser) parseInteger() (any, error) {
	start := p.pos
	if c, err := p.peek(); err == nil && (c == '-' || c == '+') {
		p.pos++
	}
	for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.Atoi(string(p.data[start:p.pos]))
	if err != nil {
		return nil, p.errf("bad integer: %v", err)
	}
	return n, nil
}

func (p *notationParser) parseReal() (any, error) {
	start := p.pos
	for p.pos < len(p.data) {
		switch c := p.data[p.pos]; {
		case c >= '0' && c <= '9':
			p.pos++
		case c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E':
			p.pos++
		default:
			goto done
		}
	}
done:
	f, err := strconv.ParseFloat(string(p.data[start:p.pos]), 64)
	if err != nil {
		return nil, p.errf("bad real: %v", err)
	}
	return f, nil
}

// parseSizedString handles the s(len)"raw bytes" form, which carries the
// byte count up front and no escaping inside the quotes.
func (p *notationParser) parseSizedString() (string, error) {
	size, err := p.parseParenSize()
	if err != nil {
		return "", err
	}
	quote, err := p.peek()
	if err != nil {
		return "", err
	}
	if quote != '"' && quote != '\'' {
		return "", p.errf("sized string missing quote")
	}
	p.pos++
	raw, err := p.take(size)
	if err != nil {
		return "", err
	}
	end, err := p.peek()
	if err != nil {
		return "", err
	}
	if end != quote {
		return "", p.errf("sized string missing closing quote")
	}
	p.pos++
	return string(raw), nil
}

func (p *notationParser) parseParenSize() (int, error) {
	c, err := p.peek()
	if err != nil {
		return 0, err
	}
	if c != '(' {
		return 0, p.errf("expected '(', got %q", c)
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.data) && p.data[p.pos] != ')' {
		p.pos++
	}
	if p.pos >= len(p.data) {
		return 0, p.errf("unterminated size")
	}
	size, err := strconv.Atoi(string(p.data[start:p.pos]))
	if err != nil || size < 0 {
		return 0, p.errf("bad size %q", p.data[start:p.pos])
	}
	p.pos++
	return size, nil
}

func (p *notationParser) parseDelimitedString() (string, error) {
	quote, err := p.peek()
	if err != nil {
		return "", err
	}
	if quote != '"' && quote != '\'' {
		return "", p.errf("expected string, got %q", quote)
	}
	p.pos++
	var out strings.Builder
	for {
		if p.pos >= len(p.data) {
			return "", p.errf("unterminated string")
		}
		c := p.data[p.pos]
		p.pos++
		switch c {
		case quote:
			return out.String(), nil
		case '\\':
			if p.pos >= len(p.data) {
				return "", p.errf("unterminated escape")
			}
			esc := p.data[p.pos]
			p.pos++
			switch esc {
			case 'a':
				out.WriteByte('\a')
			case 'b':
				out.WriteByte('\b')
			case 'f':
				out.WriteByte('\f')
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case 'v':
				out.WriteByte('\v')
			case 'x':
				raw, err := p.take(2)
				if err != nil {
					return "", err
				}
				b, err := hex.DecodeString(string(raw))
				if err != nil {
					return "", p.errf("bad \\x escape: %v", err)
				}
				out.WriteByte(b[0])
			default:
				// Unknown escapes pass the character through, which
				// covers \\ and both quote styles.
				out.WriteByte(esc)
			}
		default:
			out.WriteByte(c)
		}
	}
}

func (p *notationParser) parseBinary() (any, error) {
	c, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch c {
	case '(':
		size, err := p.parseParenSize()
		if err != nil {
			return nil, err
		}
		quote, err := p.peek()
		if err != nil {
			return nil, err
		}
		if quote != '"' && quote != '\'' {
			return nil, p.errf("raw binary missing quote")
		}
		p.pos++
		raw, err := p.take(size)
		if err != nil {
			return nil, err
		}
		end, err := p.peek()
		if err != nil {
			return nil, err
		}
		if end != quote {
			return nil, p.errf("raw binary missing closing quote")
		}
		p.pos++
		return append([]byte(nil), raw...), nil
	case '1', '6':
		base, err := p.take(2)
		if err != nil {
			return nil, err
		}
		body, err := p.parseDelimitedString()
		if err != nil {
			return nil, err
		}
		switch string(base) {
		case "16":
			out, err := hex.DecodeString(body)
			if err != nil {
				return nil, p.errf("bad base16 binary: %v", err)
			}
			return out, nil
		case "64":
			out, err := base64.StdEncoding.DecodeString(body)
			if err != nil {
				return nil, p.errf("bad base64 binary: %v", err)
			}
			return out, nil
		default:
			return nil, p.errf("unknown binary base %q", base)
		}
	default:
		return nil, p.errf("unexpected binary prefix %q", c)
	}
}

func (p *notationParser) parseArray() (any, error) {
	out := []any{}
	p.skipSpace()
	if c, err := p.peek(); err == nil && c == ']' {
		p.pos++
		return out, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		c, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch c {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return out, nil
		default:
			return nil, p.errf("expected ',' or ']', got %q", c)
		}
	}
}

func (p *notationParser) parseMap() (any, error) {
	out := map[string]any{}
	p.skipSpace()
	if c, err := p.peek(); err == nil && c == '}' {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		key, err := p.parseMapKey()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		c, err := p.peek()
		if err != nil {
			return nil, err
		}
		if c != ':' {
			return nil, p.errf("expected ':' after map key, got %q", c)
		}
		p.pos++
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out[key] = v
		p.skipSpace()
		c, err = p.peek()
		if err != nil {
			return nil, err
		}
		switch c {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, p.errf("expected ',' or '}', got %q", c)
		}
	}
}

func (p *notationParser) parseMapKey() (string, error) {
	c, err := p.peek()
	if err != nil {
		return "", err
	}
	if c == 's' {
		p.pos++
		return p.parseSizedString()
	}
	return p.parseDelimitedString()
}

func parseDate(s string, p *notationParser) (any, error) {
	for _, layout := range []string{dateLayout, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, p.errf("bad date %q", s)
}
