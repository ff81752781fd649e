package leap

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/outleap/goleap/llsd"
)

// ErrListenerClosed is returned by Get when the queue was already closed
// and drained before the call.
var ErrListenerClosed = errors.New("leap: listener closed with no queued messages")

// registration is one peer-level subscription on a source pump. The name is
// what the viewer routes events to and what stoplistening must reference;
// it stays stable for the registration's whole life, shared by every
// subscriber queue on that pump.
type registration struct {
	name        string
	subscribers []*Listener
}

func newRegistration() *registration {
	return &registration{name: "GoListener-" + uuid.NewString()}
}

func (r *registration) remove(l *Listener) bool {
	for i, sub := range r.subscribers {
		if sub == l {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// Listener is one subscriber's queue of events from a source pump.
type Listener struct {
	mu     sync.Mutex
	queue  []any
	wake   chan struct{}
	closed chan struct{}
}

func newListener() *Listener {
	return &Listener{
		wake:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// put appends one event and wakes every blocked Get. Delivery order per
// pump is arrival order.
func (l *Listener) put(v any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.closed:
		return
	default:
	}
	l.queue = append(l.queue, v)
	close(l.wake)
	l.wake = make(chan struct{})
}

// closeQueue marks the listener closed. Already-buffered events stay
// deliverable; only blocked and future Gets observe the closure.
func (l *Listener) closeQueue() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
}

// Get returns the next event. A buffered event wins over a concurrent
// close, so messages received before a disconnect are never dropped. A
// close observed while waiting surfaces as ErrDisconnected; a queue that
// was already closed and empty fails immediately with ErrListenerClosed.
func (l *Listener) Get(ctx context.Context) (any, error) {
	waited := false
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			v := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return v, nil
		}
		select {
		case <-l.closed:
			l.mu.Unlock()
			if waited {
				return nil, ErrDisconnected
			}
			return nil, ErrListenerClosed
		default:
		}
		wake := l.wake
		l.mu.Unlock()

		select {
		case <-wake:
		case <-l.closed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		waited = true
	}
}

// Empty reports whether no events are buffered.
func (l *Listener) Empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) == 0
}

// Listen subscribes to source's events. The first subscriber on a pump
// issues one "listen" meta-command and waits for the viewer's
// acknowledgement, so the subscription is active peer-side by the time
// Listen returns; later subscribers share the registration without another
// round trip.
func (c *Client) Listen(ctx context.Context, source string) (*Listener, error) {
	c.mu.Lock()
	if c.status != StatusConnected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if source == CommandPump {
		source = c.cmdPump
	}
	reg := c.listeners[source]
	if reg == nil {
		reg = newRegistration()
		c.listeners[source] = reg
	}
	first := len(reg.subscribers) == 0
	l := newListener()
	reg.subscribers = append(reg.subscribers, l)
	name := reg.name
	c.mu.Unlock()
	activeListeners.Inc()

	if first {
		req, err := c.Command(CommandPump, "listen", llsd.Map{
			"listener": name,
			"source":   source,
		})
		if err == nil {
			_, err = req.Wait(ctx)
		}
		if err != nil {
			c.mu.Lock()
			if reg := c.listeners[source]; reg != nil {
				reg.remove(l)
			}
			c.mu.Unlock()
			activeListeners.Dec()
			l.closeQueue()
			return nil, err
		}
	}
	return l, nil
}

// StopListening removes one subscriber and closes its queue. Removing the
// last subscriber on a pump issues one "stoplistening" meta-command naming
// the registration, skipped when the connection is already gone.
func (c *Client) StopListening(ctx context.Context, l *Listener) error {
	c.mu.Lock()
	var owner *registration
	var source string
	for pump, reg := range c.listeners {
		if reg.remove(l) {
			owner = reg
			source = pump
			break
		}
	}
	if owner == nil {
		c.mu.Unlock()
		return ErrNotListening
	}
	last := len(owner.subscribers) == 0
	live := c.status == StatusConnected
	name := owner.name
	c.mu.Unlock()

	activeListeners.Dec()
	l.closeQueue()

	if last && live {
		req, err := c.Command(CommandPump, "stoplistening", llsd.Map{
			"listener": name,
			"source":   source,
		})
		if err != nil {
			return err
		}
		if _, err := req.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
