package client

import (
	"github.com/rickgao/ledgerlink/internal/protocol"
)

// route handles one inbound frame: parse, settle the matching pending
// request if any, then fan out to listeners. Settlement happens before
// fan-out so request callers observe replies no later than listeners.
func (c *Client) route(data []byte) {
	c.metrics.FrameReceived()

	msg, err := protocol.Parse(data)
	if err != nil {
		// A malformed frame must not poison pending requests or
		// listeners; log it and move on.
		c.metrics.ParseError()
		c.logger.Warn("dropping unparseable frame", "error", err)
		return
	}

	if msg.HasID {
		res := result{msg: msg}
		if msg.IsError() {
			res = result{err: &ServerError{
				Code:    msg.ErrorCode,
				Message: msg.ErrorMessage,
				Raw:     msg.Raw,
			}}
		}
		c.pending.settle(msg.ID, res)
	}

	for _, e := range c.listeners.matching(msg.Type) {
		c.invokeListener(e, msg)
	}
}

// invokeListener isolates one listener call: a panicking listener is
// logged and must not stop the remaining listeners.
func (c *Client) invokeListener(e listenerEntry, msg *protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.ListenerPanic()
			c.logger.Error("listener panicked",
				"category", e.category,
				"type", msg.Type,
				"panic", r,
			)
		}
	}()

	c.metrics.ListenerCall()
	e.fn(msg)
}
