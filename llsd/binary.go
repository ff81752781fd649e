package llsd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ParseBinary decodes a value in LLSD binary encoding. A leading header
// line (either spelling) is stripped if present.
func ParseBinary(data []byte) (any, error) {
	for _, header := range binaryHeaders {
		if bytes.HasPrefix(data, header) {
			rest := data[len(header):]
			if i := bytes.IndexByte(rest, '\n'); i >= 0 {
				rest = rest[i+1:]
			}
			data = rest
			break
		}
	}
	p := &binaryParser{data: data}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.data) {
		return nil, p.errf("trailing data after value")
	}
	return v, nil
}

type binaryParser struct {
	data []byte
	pos  int
}

func (p *binaryParser) errf(format string, args ...any) error {
	return &ParseError{Encoding: "binary", Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *binaryParser) take(n int) ([]byte, error) {
	if n < 0 || p.pos+n > len(p.data) {
		return nil, p.errf("unexpected end of input, need %d bytes", n)
	}
	out := p.data[p.pos : p.pos+n]
	p.pos += n
	return out, nil
}

func (p *binaryParser) takeU32() (int, error) {
	raw, err := p.take(4)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(raw)), nil
}

func (p *binaryParser) parseValue() (any, error) {
	if p.pos >= len(p.data) {
		return nil, p.errf("unexpected end of input")
	}
	marker := p.data[p.pos]
	p.pos++
	switch marker {
	case '!':
		return nil, nil
	case '1':
		return true, nil
	case '0':
		return false, nil
	case 'i':
		raw, err := p.take(4)
		if err != nil {
			return nil, err
		}
		return int(int32(binary.BigEndian.Uint32(raw))), nil
	case 'r':
		raw, err := p.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
	case 'u':
		raw, err := p.take(16)
		if err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return nil, p.errf("bad uuid: %v", err)
		}
		return id, nil
	case 's':
		raw, err := p.takeSized()
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case 'b':
		raw, err := p.takeSized()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), raw...), nil
	case 'l':
		raw, err := p.takeSized()
		if err != nil {
			return nil, err
		}
		return URI(raw), nil
	case 'd':
		raw, err := p.take(8)
		if err != nil {
			return nil, err
		}
		seconds := math.Float64frombits(binary.BigEndian.Uint64(raw))
		sec, frac := math.Modf(seconds)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case '[':
		count, err := p.takeU32()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, p.sizeHint(count))
		for i := 0; i < count; i++ {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		count, err := p.takeU32()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, p.sizeHint(count))
		for i := 0; i < count; i++ {
			if err := p.expect('k'); err != nil {
				return nil, err
			}
			key, err := p.takeSized()
			if err != nil {
				return nil, err
			}
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			out[string(key)] = v
		}
		if err := p.expect('}'); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, p.errf("unknown type marker %q", marker)
	}
}

// sizeHint caps a declared container count by the bytes left in the input.
// Every entry costs at least one byte, so a hostile count in a tiny payload
// cannot force a large allocation before parsing fails.
func (p *binaryParser) sizeHint(count int) int {
	if rest := len(p.data) - p.pos; count > rest {
		return rest
	}
	return count
}

func (p *binaryParser) takeSized() ([]byte, error) {
	size, err := p.takeU32()
	if err != nil {
		return nil, err
	}
	return p.take(size)
}

func (p *binaryParser) expect(marker byte) error {
	if p.pos >= len(p.data) {
		return p.errf("unexpected end of input, want %q", marker)
	}
	if p.data[p.pos] != marker {
		return p.errf("expected %q, got %q", marker, p.data[p.pos])
	}
	p.pos++
	return nil
}
