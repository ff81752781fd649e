package leap

import (
	"context"
	"sync"

	"github.com/outleap/goleap/llsd"
)

// Request is the caller's handle on an outstanding reply. It is fulfilled
// exactly once: resolved with the reply payload, or cancelled when the
// connection goes away first.
type Request struct {
	id string

	once sync.Once
	done chan struct{}
	data llsd.Map
	err  error
}

func newRequest(id string) *Request {
	return &Request{id: id, done: make(chan struct{})}
}

// Wait blocks until the reply arrives, the request is cancelled, or ctx
// expires. Cancellation by disconnect surfaces as ErrDisconnected.
func (r *Request) Wait(ctx context.Context) (llsd.Map, error) {
	select {
	case <-r.done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the request is resolved or cancelled.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// ID returns the correlation id carried by the request's reqid field.
func (r *Request) ID() string {
	return r.id
}

func (r *Request) resolve(data llsd.Map) {
	r.once.Do(func() {
		r.data = data
		close(r.done)
	})
}

func (r *Request) cancel(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}
