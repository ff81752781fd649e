package leap

import (
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrBridgeClosed is returned by Serve after Close.
var ErrBridgeClosed = errors.New("leap: bridge server closed")

// BridgeServer accepts socket connections from viewer-side relays and runs
// a Client over each one. It tracks live clients and drops them from the
// registry when their connection ends.
type BridgeServer struct {
	// OnConnect, when set, is called from the accept loop after each
	// successful handshake.
	OnConnect func(*Client)

	mu      sync.Mutex
	clients map[*Client]struct{}
	ln      net.Listener
	closed  bool
}

func NewBridgeServer() *BridgeServer {
	RegisterMetrics()
	return &BridgeServer{clients: make(map[*Client]struct{})}
}

// Serve accepts connections on ln until the listener fails or the server
// is closed. Each accepted connection gets its own handshake; a connection
// whose handshake fails is dropped without affecting the loop.
func (b *BridgeServer) Serve(ln net.Listener) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ln.Close()
		return ErrBridgeClosed
	}
	b.ln = ln
	b.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if b.isClosed() || errors.Is(err, net.ErrClosed) {
				return ErrBridgeClosed
			}
			return err
		}
		go b.handle(conn)
	}
}

func (b *BridgeServer) handle(conn net.Conn) {
	client := NewClient(NewProtocol(conn, conn))
	if err := client.Connect(); err != nil {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).
			Msg("leap: bridge handshake failed")
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		client.Disconnect()
		return
	}
	b.clients[client] = struct{}{}
	b.mu.Unlock()
	bridgeClients.Inc()
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("leap: bridge client connected")

	go func() {
		<-client.Done()
		b.mu.Lock()
		_, tracked := b.clients[client]
		delete(b.clients, client)
		b.mu.Unlock()
		if tracked {
			bridgeClients.Dec()
		}
	}()

	if b.OnConnect != nil {
		b.OnConnect(client)
	}
}

// Clients returns a snapshot of the live clients.
func (b *BridgeServer) Clients() []*Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		out = append(out, c)
	}
	return out
}

func (b *BridgeServer) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close stops accepting and disconnects every tracked client.
func (b *BridgeServer) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	ln := b.ln
	clients := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, c := range clients {
		c.Disconnect()
	}
	return err
}
