package leap

import (
	"context"
	"errors"
)

// ListenScoped subscribes to source for the duration of fn and always
// unsubscribes afterwards, even when ctx has already been cancelled by the
// time fn returns. fn's error wins over teardown errors; a listener the
// disconnect path already tore down is not an error.
func (c *Client) ListenScoped(ctx context.Context, source string, fn func(*Listener) error) error {
	l, err := c.Listen(ctx, source)
	if err != nil {
		return err
	}
	fnErr := fn(l)
	stopErr := c.StopListening(context.WithoutCancel(ctx), l)
	if errors.Is(stopErr, ErrNotListening) {
		stopErr = nil
	}
	if fnErr != nil {
		return fnErr
	}
	return stopErr
}
