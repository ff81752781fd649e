package leap

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/outleap/goleap/llsd"
)

// Status is the connection lifecycle state. Disconnected is terminal; a
// Client is not reusable after teardown.
type Status int

const (
	StatusReady Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// CommandPump addresses the viewer's command pump, whose real name is only
// known after the handshake. Real pump names are never empty.
const CommandPump = ""

var (
	ErrNotReady      = errors.New("leap: connect is only valid on a fresh client")
	ErrNotConnected  = errors.New("leap: client is not connected")
	ErrBadHandshake  = errors.New("leap: bad handshake")
	ErrReplyNeedsMap = errors.New("leap: payload must be a map to expect a reply")
	ErrDisconnected  = errors.New("leap: client disconnected")
	ErrNotListening  = errors.New("leap: listener is not registered")
)

// Client drives one LEAP connection: the handshake, the inbound dispatch
// pump, reply correlation, and the pump listener registry.
type Client struct {
	wire Wire

	// postMu serializes outbound posts so frames reach the wire in call
	// order. It is never held while mu is being acquired by the inbound
	// dispatch path, and never acquired while holding mu.
	postMu sync.Mutex

	mu         sync.Mutex
	status     Status
	replyPump  string
	cmdPump    string
	viewerPID  int
	launchArgs []string
	pending    map[string]*Request
	listeners  map[string]*registration

	shutdown chan struct{}
	genReqID func() string
}

// NewClient wraps an unconnected wire. Call Connect before anything else.
func NewClient(wire Wire) *Client {
	RegisterMetrics()
	return &Client{
		wire:      wire,
		status:    StatusReady,
		pending:   make(map[string]*Request),
		listeners: make(map[string]*registration),
		shutdown:  make(chan struct{}),
		genReqID:  uuid.NewString,
	}
}

// Connect performs the one-frame handshake and starts the inbound pump.
// The first message from the viewer assigns the reply pump (its "pump"
// field) and the command pump ("command" inside its data); the viewer's
// process id and our launch arguments ride along when present and fall
// back to this process's parent pid and argv.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.status != StatusReady {
		c.mu.Unlock()
		return fmt.Errorf("%w: status is %s", ErrNotReady, c.status)
	}
	c.status = StatusConnecting
	c.mu.Unlock()

	hello, err := c.wire.ReadMessage()
	if err != nil {
		c.Disconnect()
		return fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	replyPump, ok := hello["pump"].(string)
	if !ok || replyPump == "" {
		c.Disconnect()
		return fmt.Errorf("%w: missing reply pump", ErrBadHandshake)
	}
	data, ok := hello["data"].(llsd.Map)
	if !ok {
		c.Disconnect()
		return fmt.Errorf("%w: handshake data is not a map", ErrBadHandshake)
	}
	cmdPump, ok := data["command"].(string)
	if !ok || cmdPump == "" {
		c.Disconnect()
		return fmt.Errorf("%w: missing command pump", ErrBadHandshake)
	}

	viewerPID := os.Getppid()
	if pid, ok := data["process_id"].(int); ok {
		viewerPID = pid
	}
	launchArgs := os.Args[1:]
	if raw, ok := data["args"].([]any); ok {
		launchArgs = make([]string, 0, len(raw))
		for _, arg := range raw {
			if s, ok := arg.(string); ok {
				launchArgs = append(launchArgs, s)
			}
		}
	}

	c.mu.Lock()
	c.replyPump = replyPump
	c.cmdPump = cmdPump
	c.viewerPID = viewerPID
	c.launchArgs = launchArgs
	c.status = StatusConnected
	c.mu.Unlock()

	log.Info().Str("reply_pump", replyPump).Str("cmd_pump", cmdPump).Msg("leap: connected")
	go c.pumpMessages()
	return nil
}

// pumpMessages reads and dispatches inbound messages until the stream ends.
// Every exit path funnels through Disconnect.
func (c *Client) pumpMessages() {
	defer c.Disconnect()
	for {
		msg, err := c.wire.ReadMessage()
		if err != nil {
			if !isStreamEnd(err) {
				log.Warn().Err(err).Msg("leap: inbound pump failed")
			}
			return
		}
		c.handleMessage(msg)
	}
}

// isStreamEnd reports whether err is a normal way for the peer to go away,
// as opposed to a framing or transport fault worth logging.
func isStreamEnd(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, ErrWireClosed)
}

// handleMessage routes one inbound message: reply-pump traffic resolves a
// pending request, listener-pump traffic fans out to subscriber queues, and
// anything else is logged and dropped. Reports whether the message was
// routed anywhere.
func (c *Client) handleMessage(msg llsd.Map) bool {
	pump, _ := msg["pump"].(string)
	data := msg["data"]

	c.mu.Lock()
	replyPump := c.replyPump
	c.mu.Unlock()

	if pump == replyPump {
		reply, ok := data.(llsd.Map)
		if !ok {
			log.Warn().Str("pump", pump).Msg("leap: non-map reply discarded")
			return false
		}
		rawID, ok := reply["reqid"]
		if !ok {
			log.Warn().Str("pump", pump).Msg("leap: reply without reqid discarded")
			return false
		}
		id := reqidKey(rawID)

		c.mu.Lock()
		req, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if !ok {
			log.Warn().Str("reqid", id).Msg("leap: reply for unknown request discarded")
			return false
		}
		delete(reply, "reqid")
		pendingRequests.Dec()
		req.resolve(reply)
		return true
	}

	c.mu.Lock()
	reg := c.listeners[pump]
	var subscribers []*Listener
	if reg != nil {
		subscribers = append(subscribers, reg.subscribers...)
	}
	c.mu.Unlock()

	if reg != nil {
		// An empty subscriber set is fine: stoplistening may still be in
		// flight while the peer keeps sending.
		for _, l := range subscribers {
			l.put(data)
		}
		return true
	}

	log.Warn().Str("pump", pump).Msg("leap: message for unknown pump discarded")
	return false
}

// reqidKey normalizes a reqid payload value for pending-map lookup. The
// peer round-trips our reqid verbatim, but its parsed type needn't be a
// string.
func reqidKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Post sends data to the peer's pump. With expectReply, data must be a map;
// it is copied, the reply pump and a fresh reqid are injected, and the
// returned Request tracks the reply. The frame reaches the wire before Post
// returns, so back-to-back posts hit the transport in call order without
// any intervening Wait.
func (c *Client) Post(pump string, data any, expectReply bool) (*Request, error) {
	c.postMu.Lock()
	defer c.postMu.Unlock()

	c.mu.Lock()
	if c.status != StatusConnected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if pump == CommandPump {
		pump = c.cmdPump
	}

	var req *Request
	if expectReply {
		payload, ok := data.(llsd.Map)
		if !ok {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: got %T", ErrReplyNeedsMap, data)
		}
		clone := make(llsd.Map, len(payload)+2)
		for k, v := range payload {
			clone[k] = v
		}
		clone["reply"] = c.replyPump
		id := c.genReqID()
		clone["reqid"] = id
		req = newRequest(id)
		c.pending[id] = req
		pendingRequests.Inc()
		data = clone
	}
	c.mu.Unlock()

	// The write happens outside mu so inbound dispatch keeps draining while
	// a frame is in flight; the pending entry already exists, so a reply
	// racing the write still correlates.
	if err := c.wire.WriteMessage(pump, data); err != nil {
		if req != nil {
			// Disconnect may have raced the write and already torn the
			// pending entry down; only undo what is still ours.
			c.mu.Lock()
			if _, ours := c.pending[req.id]; ours {
				delete(c.pending, req.id)
				pendingRequests.Dec()
			}
			c.mu.Unlock()
			req.cancel(err)
		}
		return nil, err
	}
	return req, nil
}

// Command posts an "op"-keyed request to pump and returns the reply handle.
func (c *Client) Command(pump, op string, data llsd.Map) (*Request, error) {
	return c.KeyedCommand(pump, "op", op, data)
}

// VoidCommand is Command for operations that never produce a reply.
func (c *Client) VoidCommand(pump, op string, data llsd.Map) error {
	return c.KeyedVoidCommand(pump, "op", op, data)
}

// KeyedCommand is Command with the operation stored under opKey instead of
// "op"; a few viewer APIs use a non-standard key.
func (c *Client) KeyedCommand(pump, opKey, op string, data llsd.Map) (*Request, error) {
	return c.Post(pump, withOp(data, opKey, op), true)
}

// KeyedVoidCommand is VoidCommand with a caller-chosen operation key.
func (c *Client) KeyedVoidCommand(pump, opKey, op string, data llsd.Map) error {
	_, err := c.Post(pump, withOp(data, opKey, op), false)
	return err
}

func withOp(data llsd.Map, opKey, op string) llsd.Map {
	clone := make(llsd.Map, len(data)+1)
	for k, v := range data {
		clone[k] = v
	}
	clone[opKey] = op
	return clone
}

// Disconnect tears the connection down: terminal state, transport closed,
// every pending request cancelled, every listener queue closed, both maps
// cleared. Idempotent and safe from any goroutine.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.status == StatusDisconnected {
		c.mu.Unlock()
		return
	}
	wasConnected := c.status == StatusConnected
	c.status = StatusDisconnected
	close(c.shutdown)
	pending := c.pending
	listeners := c.listeners
	c.pending = make(map[string]*Request)
	c.listeners = make(map[string]*registration)
	c.mu.Unlock()

	if wasConnected {
		log.Info().Msg("leap: closing connection")
	}
	c.wire.Close()

	for _, req := range pending {
		pendingRequests.Dec()
		req.cancel(ErrDisconnected)
	}
	for _, reg := range listeners {
		for _, l := range reg.subscribers {
			activeListeners.Dec()
			l.closeQueue()
		}
	}
}

// Connected reports whether the client is in the Connected state.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusConnected
}

// Status returns the current lifecycle state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Done is closed when the client disconnects.
func (c *Client) Done() <-chan struct{} {
	return c.shutdown
}

// CommandPumpName returns the command pump assigned by the handshake.
func (c *Client) CommandPumpName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmdPump
}

// ReplyPumpName returns the reply pump assigned by the handshake.
func (c *Client) ReplyPumpName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replyPump
}

// ViewerPID returns the peer's process id from the handshake, or this
// process's parent pid when the handshake omitted it.
func (c *Client) ViewerPID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewerPID
}

// LaunchArgs returns the launch arguments from the handshake, or this
// process's argv when the handshake omitted them.
func (c *Client) LaunchArgs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.launchArgs...)
}
