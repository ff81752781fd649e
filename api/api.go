package api

import (
	"context"
	"errors"

	"github.com/outleap/goleap/leap"
	"github.com/outleap/goleap/llsd"
)

// Default pump names for the stock viewer APIs.
const (
	WindowPump            = "LLWindow"
	UIPump                = "UI"
	ViewerControlPump     = "LLViewerControl"
	ViewerWindowPump      = "LLViewerWindow"
	CommandDispatcherPump = "LLCommandDispatcher"
	AgentPump             = "LLAgent"
)

var (
	ErrNoKey         = errors.New("api: key event needs one of keycode, keysym, or char")
	ErrNoMouseTarget = errors.New("api: mouse event needs a path or both coordinates")
	ErrNoLookTarget  = errors.New("api: lookAt needs an object id or a position")
)

// Commander is the slice of leap.Client the wrappers use. Taking an
// interface keeps them testable without a live connection.
type Commander interface {
	Command(pump, op string, data llsd.Map) (*leap.Request, error)
	VoidCommand(pump, op string, data llsd.Map) error
}

var _ Commander = (*leap.Client)(nil)

// run sends a command and waits for the reply.
func run(ctx context.Context, c Commander, pump, op string, data llsd.Map) (llsd.Map, error) {
	req, err := c.Command(pump, op, data)
	if err != nil {
		return nil, err
	}
	return req.Wait(ctx)
}
