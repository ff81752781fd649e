package api

import (
	"context"
	"fmt"

	"github.com/outleap/goleap/llsd"
)

// Window drives the LLWindow pump: synthetic keyboard and mouse input plus
// UI introspection.
type Window struct {
	client Commander
	pump   string
}

func NewWindow(c Commander) *Window {
	return &Window{client: c, pump: WindowPump}
}

// KeyEvent describes one key for KeyDown/KeyUp/KeyPress. Exactly one of
// Keycode, Keysym, or Char identifies the key, checked in that order; the
// viewer has no keycode zero, so a zero Keycode means unset.
type KeyEvent struct {
	Keycode int
	Keysym  string
	Char    string
	Mask    []string
	Path    UIPath
}

func (ev KeyEvent) payload() (llsd.Map, error) {
	payload := llsd.Map{}
	switch {
	case ev.Keycode != 0:
		payload["keycode"] = ev.Keycode
	case ev.Keysym != "":
		payload["keysym"] = ev.Keysym
	case ev.Char != "":
		payload["char"] = ev.Char
	default:
		return nil, ErrNoKey
	}
	if !ev.Path.IsRoot() {
		payload["path"] = ev.Path.String()
	}
	if len(ev.Mask) > 0 {
		payload["mask"] = maskArray(ev.Mask)
	}
	return payload, nil
}

// KeyDown simulates a key being pressed down.
func (w *Window) KeyDown(ev KeyEvent) error {
	payload, err := ev.payload()
	if err != nil {
		return err
	}
	return w.client.VoidCommand(w.pump, "keyDown", payload)
}

// KeyUp simulates a key being released.
func (w *Window) KeyUp(ev KeyEvent) error {
	payload, err := ev.payload()
	if err != nil {
		return err
	}
	return w.client.VoidCommand(w.pump, "keyUp", payload)
}

// KeyPress simulates a key being pressed and immediately released.
func (w *Window) KeyPress(ev KeyEvent) error {
	if err := w.KeyDown(ev); err != nil {
		return err
	}
	return w.KeyUp(ev)
}

// TextInput types a string one character at a time.
func (w *Window) TextInput(text string, path UIPath) error {
	for _, r := range text {
		if err := w.KeyPress(KeyEvent{Char: string(r), Path: path}); err != nil {
			return fmt.Errorf("typing %q: %w", r, err)
		}
	}
	return nil
}

// GetPaths returns every UI path under the given root, or the whole tree
// when under is the root path.
func (w *Window) GetPaths(ctx context.Context, under UIPath) ([]UIPath, error) {
	arg := ""
	if !under.IsRoot() {
		arg = under.String()
	}
	reply, err := run(ctx, w.client, w.pump, "getPaths", llsd.Map{"under": arg})
	if err != nil {
		return nil, err
	}
	raw, _ := reply["paths"].([]any)
	paths := make([]UIPath, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			paths = append(paths, ParsePath(s))
		}
	}
	return paths, nil
}

// GetInfo returns the viewer's raw info map for the element at path.
func (w *Window) GetInfo(ctx context.Context, path UIPath) (llsd.Map, error) {
	return run(ctx, w.client, w.pump, "getInfo", llsd.Map{"path": path.String()})
}

// MouseEvent targets either a UI path or viewport coordinates. A non-root
// Path wins; otherwise Coords marks X/Y as meaningful.
type MouseEvent struct {
	Path   UIPath
	X, Y   int
	Coords bool
	Button string
	Mask   []string
}

func (ev MouseEvent) payload(withButton bool) (llsd.Map, error) {
	payload := llsd.Map{}
	switch {
	case !ev.Path.IsRoot():
		payload["path"] = ev.Path.String()
	case ev.Coords:
		payload["x"] = ev.X
		payload["y"] = ev.Y
	default:
		return nil, ErrNoMouseTarget
	}
	if len(ev.Mask) > 0 {
		payload["mask"] = maskArray(ev.Mask)
	}
	if withButton {
		payload["button"] = ev.Button
	}
	return payload, nil
}

// MouseDown presses a mouse button at the event's target.
func (w *Window) MouseDown(ctx context.Context, ev MouseEvent) (llsd.Map, error) {
	payload, err := ev.payload(true)
	if err != nil {
		return nil, err
	}
	return run(ctx, w.client, w.pump, "mouseDown", payload)
}

// MouseUp releases a mouse button at the event's target.
func (w *Window) MouseUp(ctx context.Context, ev MouseEvent) (llsd.Map, error) {
	payload, err := ev.payload(true)
	if err != nil {
		return nil, err
	}
	return run(ctx, w.client, w.pump, "mouseUp", payload)
}

// MouseClick presses and releases a button. The press response is
// discarded; side effects fire on the release, whose reply is returned.
func (w *Window) MouseClick(ctx context.Context, ev MouseEvent) (llsd.Map, error) {
	payload, err := ev.payload(true)
	if err != nil {
		return nil, err
	}
	if err := w.client.VoidCommand(w.pump, "mouseDown", payload); err != nil {
		return nil, err
	}
	return run(ctx, w.client, w.pump, "mouseUp", payload)
}

// MouseMove moves the pointer to the event's target.
func (w *Window) MouseMove(ctx context.Context, ev MouseEvent) (llsd.Map, error) {
	payload, err := ev.payload(false)
	if err != nil {
		return nil, err
	}
	return run(ctx, w.client, w.pump, "mouseMove", payload)
}

// MouseScroll turns the scroll wheel by clicks notches; negative scrolls
// the other way.
func (w *Window) MouseScroll(clicks int) error {
	// The viewer acknowledges the scroll; nobody needs the ack, but sending
	// a reqid keeps the reply from being flagged as unroutable.
	_, err := w.client.Command(w.pump, "mouseScroll", llsd.Map{"clicks": clicks})
	return err
}

func maskArray(mask []string) []any {
	out := make([]any, len(mask))
	for i, m := range mask {
		out[i] = m
	}
	return out
}
