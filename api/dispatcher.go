package api

import (
	"context"

	"github.com/outleap/goleap/llsd"
)

// CommandDispatcher drives the LLCommandDispatcher pump: the registry
// behind secondlife:///app/ style commands.
type CommandDispatcher struct {
	client Commander
	pump   string
}

func NewCommandDispatcher(c Commander) *CommandDispatcher {
	return &CommandDispatcher{client: c, pump: CommandDispatcherPump}
}

// DispatchOptions carries the optional parts of a dispatch.
type DispatchOptions struct {
	Params    []string
	Query     map[string]string
	Untrusted bool
}

// Dispatch executes a registered command handler.
func (d *CommandDispatcher) Dispatch(cmd string, opts DispatchOptions) error {
	params := make([]any, len(opts.Params))
	for i, p := range opts.Params {
		params[i] = p
	}
	query := llsd.Map{}
	for k, v := range opts.Query {
		query[k] = v
	}
	return d.client.VoidCommand(d.pump, "dispatch", llsd.Map{
		"cmd":     cmd,
		"params":  params,
		"query":   query,
		"trusted": !opts.Untrusted,
	})
}

// Enumerate returns the registered command handlers with their flags.
func (d *CommandDispatcher) Enumerate(ctx context.Context) (llsd.Map, error) {
	return run(ctx, d.client, d.pump, "enumerate", llsd.Map{})
}
