package api

import (
	"context"

	"github.com/outleap/goleap/llsd"
)

// ViewerControl drives the LLViewerControl pump: the viewer's settings
// store. Groups are "Global", "PerAccount", "Warnings", and
// "CrashSettings".
type ViewerControl struct {
	client Commander
	pump   string
}

func NewViewerControl(c Commander) *ViewerControl {
	return &ViewerControl{client: c, pump: ViewerControlPump}
}

// Get returns the reply for one settings key, including its value and
// metadata.
func (v *ViewerControl) Get(ctx context.Context, group, key string) (llsd.Map, error) {
	return run(ctx, v.client, v.pump, "get", llsd.Map{"group": group, "key": key})
}

// Vars lists every control in group.
func (v *ViewerControl) Vars(ctx context.Context, group string) ([]any, error) {
	reply, err := run(ctx, v.client, v.pump, "vars", llsd.Map{"group": group})
	if err != nil {
		return nil, err
	}
	vars, _ := reply["vars"].([]any)
	return vars, nil
}

// Set writes a settings key. Failures surface only in the viewer log.
func (v *ViewerControl) Set(group, key string, value any) error {
	return v.client.VoidCommand(v.pump, "set", llsd.Map{
		"group": group,
		"key":   key,
		"value": value,
	})
}
