package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/outleap/goleap/llsd"
)

// Agent drives the LLAgent pump.
type Agent struct {
	client Commander
	pump   string
}

func NewAgent(c Commander) *Agent {
	return &Agent{client: c, pump: AgentPump}
}

// defaultLookAtType is the viewer's "focus" look-at.
const defaultLookAtType = 8

// LookAtTarget aims the avatar's gaze at an object by id or at the object
// nearest a position. A non-nil Object wins.
type LookAtTarget struct {
	Object   uuid.UUID
	Position []float64
	Type     int // 0 means the default focus type
}

// LookAt points the avatar's gaze at the target.
func (a *Agent) LookAt(target LookAtTarget) error {
	lookType := target.Type
	if lookType == 0 {
		lookType = defaultLookAtType
	}
	payload := llsd.Map{"type": lookType}
	switch {
	case target.Object != uuid.Nil:
		payload["obj_uuid"] = target.Object
	case len(target.Position) > 0:
		pos := make([]any, len(target.Position))
		for i, v := range target.Position {
			pos[i] = v
		}
		payload["position"] = pos
	default:
		return ErrNoLookTarget
	}
	return a.client.VoidCommand(a.pump, "lookAt", payload)
}

// GetAutoPilot reports the current state of the autopilot system.
func (a *Agent) GetAutoPilot(ctx context.Context) (llsd.Map, error) {
	return run(ctx, a.client, a.pump, "getAutoPilot", llsd.Map{})
}
