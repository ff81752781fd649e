//go:build !linux

package leap

// tuneStdioPipes is a no-op where pipe buffers cannot be resized.
func tuneStdioPipes() error { return nil }
