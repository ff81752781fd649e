package api

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/outleap/goleap/leap"
	"github.com/outleap/goleap/llsd"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

type sentCmd struct {
	pump string
	data llsd.Map
}

// fakeViewer implements leap.Wire and answers commands the way a viewer
// would: every write carrying a reqid gets the scripted reply for its op,
// with the reqid echoed back.
type fakeViewer struct {
	mu      sync.Mutex
	sent    []sentCmd
	respond func(pump string, data llsd.Map) llsd.Map

	inbox chan llsd.Map
	done  chan struct{}
	once  sync.Once
}

func newFakeViewer() *fakeViewer {
	return &fakeViewer{
		inbox: make(chan llsd.Map, 64),
		done:  make(chan struct{}),
	}
}

func (v *fakeViewer) WriteMessage(pump string, data any) error {
	payload, _ := data.(llsd.Map)
	v.mu.Lock()
	v.sent = append(v.sent, sentCmd{pump: pump, data: payload})
	respond := v.respond
	v.mu.Unlock()

	reqid, ok := payload["reqid"]
	if !ok {
		return nil
	}
	reply := llsd.Map{}
	if respond != nil {
		for k, val := range respond(pump, payload) {
			reply[k] = val
		}
	}
	reply["reqid"] = reqid
	v.push(payload["reply"].(string), reply)
	return nil
}

func (v *fakeViewer) push(pump string, data any) {
	v.inbox <- llsd.Map{"pump": pump, "data": data}
}

func (v *fakeViewer) ReadMessage() (llsd.Map, error) {
	select {
	case msg := <-v.inbox:
		return msg, nil
	case <-v.done:
		return nil, io.EOF
	}
}

func (v *fakeViewer) Close() error {
	v.once.Do(func() { close(v.done) })
	return nil
}

func (v *fakeViewer) Closed() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

func (v *fakeViewer) sentCmds() []sentCmd {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]sentCmd(nil), v.sent...)
}

func (v *fakeViewer) lastCmd(t *testing.T) sentCmd {
	t.Helper()
	cmds := v.sentCmds()
	if len(cmds) == 0 {
		t.Fatalf("nothing sent")
	}
	return cmds[len(cmds)-1]
}

// connectedViewer returns a live client wired to a fake viewer.
func connectedViewer(t *testing.T) (*leap.Client, *fakeViewer) {
	t.Helper()
	v := newFakeViewer()
	v.push("reply-pump", llsd.Map{"command": "cmd-pump"})
	c := leap.NewClient(v)
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c, v
}
