package transport

import "errors"

var (
	// ErrNotConnected is returned by Send when no socket is established.
	ErrNotConnected = errors.New("not connected")
)
