package leap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/outleap/goleap/llsd"
)

// MaxPayload caps the declared body length of one inbound frame. A corrupt
// or hostile length prefix must never drive an allocation.
const MaxPayload = 0x0FFFFFFF

const readerBufferSize = 1 << 16

var (
	ErrPayloadTooLarge = errors.New("leap: frame payload length exceeds limit")
	ErrMalformedLength = errors.New("leap: malformed frame length prefix")
	ErrNotMap          = errors.New("leap: frame body is not a map")
	ErrWireClosed      = errors.New("leap: wire is closed")
)

// Wire is the message-level transport a Client runs on. Tests substitute
// their own implementation; production code uses Protocol.
type Wire interface {
	// WriteMessage enqueues one {pump, data} message. The enqueue is
	// synchronous and ordered; flushing happens in the background.
	WriteMessage(pump string, data any) error
	// ReadMessage blocks until one complete message is available.
	ReadMessage() (llsd.Map, error)
	// Close is idempotent and releases the underlying transport.
	Close() error
	// Closed reports whether Close has been called.
	Closed() bool
}

// Protocol frames LEAP messages over a byte stream as
// "<ascii-decimal-length>:<llsd-notation-body>". One Protocol owns its
// reader/writer pair exclusively.
type Protocol struct {
	reader *bufio.Reader
	source io.Reader

	writeMu  sync.Mutex
	pending  bytes.Buffer
	writeErr error
	sink     io.WriteCloser

	flushWake chan struct{}
	closing   chan struct{}
	flushed   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ Wire = (*Protocol)(nil)

// NewProtocol wraps a reader/writer pair. The pair is owned by the returned
// Protocol from here on; Close releases both ends.
func NewProtocol(r io.Reader, w io.WriteCloser) *Protocol {
	p := &Protocol{
		reader:    bufio.NewReaderSize(r, readerBufferSize),
		source:    r,
		sink:      w,
		flushWake: make(chan struct{}, 1),
		closing:   make(chan struct{}),
		flushed:   make(chan struct{}),
	}
	go p.flushLoop()
	return p
}

// flushLoop drains the pending buffer in the background. Writes issued
// while a drain is in progress coalesce into the next one.
func (p *Protocol) flushLoop() {
	for {
		select {
		case <-p.flushWake:
			p.drainPending()
		case <-p.closing:
			p.drainPending()
			close(p.flushed)
			return
		}
	}
}

// drainPending copies everything buffered so far and writes it to the sink
// outside writeMu, so a slow or backpressured sink never stalls
// WriteMessage. The first sink error sticks and fails later writes.
func (p *Protocol) drainPending() {
	for {
		p.writeMu.Lock()
		if p.pending.Len() == 0 || p.writeErr != nil {
			p.writeMu.Unlock()
			return
		}
		chunk := append([]byte(nil), p.pending.Bytes()...)
		p.pending.Reset()
		p.writeMu.Unlock()

		if _, err := p.sink.Write(chunk); err != nil {
			p.writeMu.Lock()
			p.writeErr = err
			p.writeMu.Unlock()
			return
		}
	}
}

func (p *Protocol) WriteMessage(pump string, data any) error {
	if p.Closed() {
		return ErrWireClosed
	}
	body, err := llsd.FormatNotation(llsd.Map{"pump": pump, "data": data})
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	if p.writeErr != nil {
		err := p.writeErr
		p.writeMu.Unlock()
		return err
	}
	p.pending.WriteString(strconv.Itoa(len(body)))
	p.pending.WriteByte(':')
	p.pending.Write(body)
	p.writeMu.Unlock()
	recordFrameWritten(len(body))

	select {
	case p.flushWake <- struct{}{}:
	default:
		// A drain is already scheduled; it will pick this write up.
	}
	return nil
}

func (p *Protocol) ReadMessage() (llsd.Map, error) {
	length, err := p.readLength()
	if err != nil {
		return nil, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	recordFrameRead(length)

	parsed, err := llsd.Parse(body)
	if err != nil {
		return nil, err
	}
	msg, ok := parsed.(llsd.Map)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotMap, parsed)
	}
	return msg, nil
}

// readLength consumes ASCII digits up to the delimiter colon. The value is
// validated incrementally so an oversized prefix fails before any body
// allocation.
func (p *Protocol) readLength() (int, error) {
	length := 0
	digits := 0
	for {
		c, err := p.reader.ReadByte()
		if err != nil {
			if digits > 0 && errors.Is(err, io.EOF) {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		switch {
		case c == ':':
			if digits == 0 {
				return 0, fmt.Errorf("%w: empty length", ErrMalformedLength)
			}
			return length, nil
		case c >= '0' && c <= '9':
			length = length*10 + int(c-'0')
			digits++
			if length > MaxPayload {
				return 0, fmt.Errorf("%w: declared %d", ErrPayloadTooLarge, length)
			}
		default:
			return 0, fmt.Errorf("%w: unexpected byte %q", ErrMalformedLength, c)
		}
	}
}

func (p *Protocol) Closed() bool {
	select {
	case <-p.closing:
		return true
	default:
		return false
	}
}

// Close flushes buffered output, then releases the transport. Safe to call
// more than once and from any goroutine.
func (p *Protocol) Close() error {
	p.closeOnce.Do(func() {
		close(p.closing)
		<-p.flushed
		p.closeErr = p.sink.Close()
		if rc, ok := p.source.(io.Closer); ok && any(p.source) != any(p.sink) {
			rc.Close()
		}
	})
	return p.closeErr
}
