package client

import (
	"context"
	"errors"

	"github.com/rickgao/ledgerlink/internal/protocol"
	"github.com/rickgao/ledgerlink/internal/transport"
)

// Request sends a command frame and waits for the correlated reply. The
// connection is established first if needed. The correlation id is assigned
// from the client's monotonic counter and injected into the frame; ids are
// never reused within this client's lifetime.
//
// The wait ends with whichever comes first: the reply, ErrRequestTimeout,
// ErrDisconnected, a *ServerError carrying the reply payload, or ctx
// cancellation.
func (c *Client) Request(ctx context.Context, command string, fields map[string]any) (*protocol.Message, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	id := c.reqID.Add(1)
	key := protocol.FormatID(id)

	entry, err := c.pending.add(key, c.timeout)
	if err != nil {
		return nil, err
	}

	frame, err := protocol.BuildRequest(id, command, fields)
	if err != nil {
		c.pending.remove(key)
		return nil, err
	}

	if err := c.send(frame); err != nil {
		c.pending.remove(key)
		return nil, err
	}

	return c.await(ctx, key, entry)
}

// SendMessage sends an already protocol-shaped frame. A usable top-level
// "id" field (JSON number or string) makes it behave exactly like Request:
// a pending entry is registered under that id and the correlated reply is
// returned. Without one the frame is fire-and-forget: sent once, nil reply,
// no pending entry.
func (c *Client) SendMessage(ctx context.Context, raw []byte) (*protocol.Message, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	id, ok := protocol.ExtractID(raw)
	if !ok {
		if err := c.send(raw); err != nil {
			return nil, err
		}
		return nil, nil
	}

	entry, err := c.pending.add(id, c.timeout)
	if err != nil {
		return nil, err
	}

	if err := c.send(raw); err != nil {
		c.pending.remove(id)
		return nil, err
	}

	return c.await(ctx, id, entry)
}

// send writes one frame on the current transport generation.
func (c *Client) send(data []byte) error {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()

	if tr == nil {
		return ErrDisconnected
	}
	if err := tr.Send(data); err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			return ErrDisconnected
		}
		return err
	}
	return nil
}

// await blocks until the entry settles or ctx ends. A cancelled wait
// removes the entry so its timer cannot fire later.
func (c *Client) await(ctx context.Context, id string, e *pendingEntry) (*protocol.Message, error) {
	select {
	case res := <-e.ch:
		return res.msg, res.err
	case <-ctx.Done():
		c.pending.remove(id)
		return nil, ctx.Err()
	}
}
