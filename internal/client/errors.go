package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Errors
var (
	// ErrConnectTimeout means the transport did not report an open socket
	// within the request timeout. Connect may be called again.
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrDisconnected settles every pending request when the connection
	// drops, whatever the cause. The caller must re-issue after reconnect.
	ErrDisconnected = errors.New("disconnected")

	// ErrRequestTimeout means a single request's reply did not arrive in
	// time. Other pending requests are unaffected.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrDuplicateID rejects a SendMessage whose embedded id is already
	// pending. Ids are never shared between outstanding requests.
	ErrDuplicateID = errors.New("duplicate correlation id")
)

// ServerError is a reply whose payload explicitly signals failure.
type ServerError struct {
	Code    string
	Message string
	Raw     json.RawMessage
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server error %s", e.Code)
}
