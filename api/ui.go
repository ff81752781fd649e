package api

import (
	"context"

	"github.com/outleap/goleap/llsd"
)

// UI drives the UI pump: invoking registered UI functions and reading
// control values.
type UI struct {
	client Commander
	pump   string
}

func NewUI(c Commander) *UI {
	return &UI{client: c, pump: UIPump}
}

// Call invokes function as if from a menu or button click, passing
// parameter. Most callbacks registered through the viewer's commit
// callback registry are reachable this way.
func (u *UI) Call(function string, parameter any) error {
	return u.client.VoidCommand(u.pump, "call", llsd.Map{
		"function":  function,
		"parameter": parameter,
	})
}

// GetValue returns the current value of the control at path.
func (u *UI) GetValue(ctx context.Context, path UIPath) (any, error) {
	reply, err := run(ctx, u.client, u.pump, "getValue", llsd.Map{"path": path.String()})
	if err != nil {
		return nil, err
	}
	return reply["value"], nil
}
