package leap

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/outleap/goleap/internal/testutil/testlog"
	"github.com/outleap/goleap/llsd"
)

func connectedWithAck(t *testing.T) (*Client, *mockWire) {
	t.Helper()
	wire := newMockWire()
	wire.autoAck = true
	return connectedClient(t, wire), wire
}

func TestListenRegistersOnce(t *testing.T) {
	testlog.Start(t)
	c, wire := connectedWithAck(t)
	ctx := testContext(t)

	l1, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen 1: %v", err)
	}
	l2, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen 2: %v", err)
	}
	if l1 == l2 {
		t.Fatalf("subscribers share a queue")
	}

	listens := wire.sentOps("listen")
	if len(listens) != 1 {
		t.Fatalf("sent %d listen commands", len(listens))
	}
	data := listens[0].data.(llsd.Map)
	if data["source"] != "events" {
		t.Fatalf("source: got %#v", data["source"])
	}
	name, _ := data["listener"].(string)
	if !strings.HasPrefix(name, "GoListener-") {
		t.Fatalf("listener name: got %q", name)
	}
}

func TestListenResolvesCommandPump(t *testing.T) {
	testlog.Start(t)
	c, wire := connectedWithAck(t)

	if _, err := c.Listen(testContext(t), CommandPump); err != nil {
		t.Fatalf("listen: %v", err)
	}
	data := wire.sentOps("listen")[0].data.(llsd.Map)
	if data["source"] != "cmd-pump" {
		t.Fatalf("source: got %#v", data["source"])
	}
}

func TestListenNotConnected(t *testing.T) {
	testlog.Start(t)
	c := NewClient(newMockWire())
	if _, err := c.Listen(testContext(t), "events"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("got %v want ErrNotConnected", err)
	}
}

func TestListenerFanOut(t *testing.T) {
	testlog.Start(t)
	c, wire := connectedWithAck(t)
	ctx := testContext(t)

	l1, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen 1: %v", err)
	}
	l2, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen 2: %v", err)
	}

	event := llsd.Map{"what": "clicked"}
	wire.push("events", event)

	for i, l := range []*Listener{l1, l2} {
		got, err := l.Get(ctx)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, event) {
			t.Fatalf("get %d: got %#v", i, got)
		}
	}
}

func TestListenerOrder(t *testing.T) {
	testlog.Start(t)
	c, wire := connectedWithAck(t)
	ctx := testContext(t)

	l, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	for i := 0; i < 3; i++ {
		wire.push("events", llsd.Map{"seq": i})
	}
	for i := 0; i < 3; i++ {
		got, err := l.Get(ctx)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if got.(llsd.Map)["seq"] != i {
			t.Fatalf("get %d: got %#v", i, got)
		}
	}
	if !l.Empty() {
		t.Fatalf("queue should be drained")
	}
}

func TestStopListeningLastUnsubscribes(t *testing.T) {
	testlog.Start(t)
	c, wire := connectedWithAck(t)
	ctx := testContext(t)

	l1, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen 1: %v", err)
	}
	l2, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen 2: %v", err)
	}

	if err := c.StopListening(ctx, l1); err != nil {
		t.Fatalf("stop 1: %v", err)
	}
	if stops := wire.sentOps("stoplistening"); len(stops) != 0 {
		t.Fatalf("stoplistening sent with a subscriber remaining: %#v", stops)
	}

	if err := c.StopListening(ctx, l2); err != nil {
		t.Fatalf("stop 2: %v", err)
	}
	stops := wire.sentOps("stoplistening")
	if len(stops) != 1 {
		t.Fatalf("sent %d stoplistening commands", len(stops))
	}
	stopData := stops[0].data.(llsd.Map)
	listenData := wire.sentOps("listen")[0].data.(llsd.Map)
	if stopData["listener"] != listenData["listener"] {
		t.Fatalf("stoplistening names %#v, registered %#v", stopData["listener"], listenData["listener"])
	}
	if stopData["source"] != "events" {
		t.Fatalf("source: got %#v", stopData["source"])
	}
}

func TestStopListeningUnknown(t *testing.T) {
	testlog.Start(t)
	c, _ := connectedWithAck(t)
	if err := c.StopListening(testContext(t), newListener()); !errors.Is(err, ErrNotListening) {
		t.Fatalf("got %v want ErrNotListening", err)
	}
}

func TestStopListeningAfterDisconnectSkipsCommand(t *testing.T) {
	testlog.Start(t)
	c, wire := connectedWithAck(t)
	ctx := testContext(t)

	l, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	c.Disconnect()

	// The disconnect already emptied the registry.
	if err := c.StopListening(ctx, l); !errors.Is(err, ErrNotListening) {
		t.Fatalf("got %v want ErrNotListening", err)
	}
	if stops := wire.sentOps("stoplistening"); len(stops) != 0 {
		t.Fatalf("stoplistening sent after disconnect: %#v", stops)
	}
}

func TestListenerDrainsBufferedAfterDisconnect(t *testing.T) {
	testlog.Start(t)
	c, wire := connectedWithAck(t)
	ctx := testContext(t)

	l, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	wire.push("events", llsd.Map{"seq": 0})

	deadline := time.Now().Add(5 * time.Second)
	for l.Empty() {
		if time.Now().After(deadline) {
			t.Fatalf("event never delivered")
		}
		time.Sleep(time.Millisecond)
	}
	c.Disconnect()

	got, err := l.Get(ctx)
	if err != nil {
		t.Fatalf("get buffered: %v", err)
	}
	if got.(llsd.Map)["seq"] != 0 {
		t.Fatalf("got %#v", got)
	}
	if _, err := l.Get(ctx); !errors.Is(err, ErrListenerClosed) {
		t.Fatalf("got %v want ErrListenerClosed", err)
	}
}

func TestListenerGetInterruptedByDisconnect(t *testing.T) {
	testlog.Start(t)
	c, _ := connectedWithAck(t)
	ctx := testContext(t)

	l, err := c.Listen(ctx, "events")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	errs := make(chan error, 1)
	go func() {
		_, err := l.Get(ctx)
		errs <- err
	}()
	time.Sleep(10 * time.Millisecond)
	c.Disconnect()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("got %v want ErrDisconnected", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("get never returned")
	}
}

func TestListenerGetContextCancel(t *testing.T) {
	testlog.Start(t)
	c, _ := connectedWithAck(t)

	l, err := c.Listen(testContext(t), "events")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v want context.Canceled", err)
	}
}

func TestListenScoped(t *testing.T) {
	testlog.Start(t)
	c, wire := connectedWithAck(t)
	ctx := testContext(t)

	event := llsd.Map{"what": "ready"}
	err := c.ListenScoped(ctx, "events", func(l *Listener) error {
		wire.push("events", event)
		got, err := l.Get(ctx)
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(got, event) {
			t.Fatalf("got %#v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scoped: %v", err)
	}
	if stops := wire.sentOps("stoplistening"); len(stops) != 1 {
		t.Fatalf("sent %d stoplistening commands", len(stops))
	}
}

func TestListenScopedSurvivesDisconnectInBody(t *testing.T) {
	testlog.Start(t)
	c, _ := connectedWithAck(t)

	err := c.ListenScoped(testContext(t), "events", func(*Listener) error {
		c.Disconnect()
		return nil
	})
	if err != nil {
		t.Fatalf("scoped: %v", err)
	}
}
