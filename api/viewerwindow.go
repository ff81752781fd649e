package api

import (
	"context"

	"github.com/outleap/goleap/llsd"
)

// ViewerWindow drives the LLViewerWindow pump.
type ViewerWindow struct {
	client Commander
	pump   string
}

func NewViewerWindow(c Commander) *ViewerWindow {
	return &ViewerWindow{client: c, pump: ViewerWindowPump}
}

// SnapshotOptions tunes SaveSnapshot. The zero value snapshots the full
// window in color with HUD and UI shown.
type SnapshotOptions struct {
	Width   int // 0 keeps the current width
	Height  int // 0 keeps the current height
	HideHUD bool
	HideUI  bool
	Rebuild bool
	Type    string // "COLOR" (default) or "DEPTH"
}

// SaveSnapshot writes a snapshot to filename on the viewer's disk and
// reports whether the viewer succeeded.
func (v *ViewerWindow) SaveSnapshot(ctx context.Context, filename string, opts SnapshotOptions) (bool, error) {
	snapType := opts.Type
	if snapType == "" {
		snapType = "COLOR"
	}
	payload := llsd.Map{
		"filename": filename,
		"showhud":  !opts.HideHUD,
		"showui":   !opts.HideUI,
		"rebuild":  opts.Rebuild,
		"type":     snapType,
	}
	if opts.Width > 0 {
		payload["width"] = opts.Width
	}
	if opts.Height > 0 {
		payload["height"] = opts.Height
	}
	reply, err := run(ctx, v.client, v.pump, "saveSnapshot", payload)
	if err != nil {
		return false, err
	}
	ok, _ := reply["ok"].(bool)
	return ok, nil
}

// RequestReshape asks the viewer to resize its window.
func (v *ViewerWindow) RequestReshape(width, height int) error {
	return v.client.VoidCommand(v.pump, "requestReshape", llsd.Map{"w": width, "h": height})
}
