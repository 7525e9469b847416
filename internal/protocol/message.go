// Package protocol parses inbound frames and builds outbound request frames.
//
// Frames are JSON objects. Three fields matter to the core:
//
//   - "id": the correlation id linking a reply to the request that caused it.
//     Only the top-level field is recognized; ids nested inside payloads are
//     not correlation ids.
//   - "type": the message category used for listener filtering.
//   - "status": "error" marks a reply as a server-reported failure.
//
// Everything else is payload and travels opaquely in Raw.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Message is a parsed inbound frame.
type Message struct {
	ID    string // canonical correlation id ("" when HasID is false)
	HasID bool

	Type   string // category for listener filtering
	Status string // "success", "error", or ""

	ErrorCode    string // populated on error replies
	ErrorMessage string

	Raw json.RawMessage // the full frame
}

// IsError reports whether the frame signals a server-side failure.
func (m *Message) IsError() bool {
	return m.Status == "error"
}

// envelope is the part of a frame the router needs.
type envelope struct {
	ID           json.RawMessage `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	ErrorCode    string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// Parse decodes a raw frame. The frame must be a JSON object; anything else
// is a parse failure and the caller drops the frame.
func Parse(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}

	m := &Message{
		Type:         env.Type,
		Status:       env.Status,
		ErrorCode:    env.ErrorCode,
		ErrorMessage: env.ErrorMessage,
		Raw:          append(json.RawMessage(nil), data...),
	}
	if id, ok := canonicalID(env.ID); ok {
		m.ID = id
		m.HasID = true
	}
	return m, nil
}

// ExtractID returns the canonical top-level id of a caller-shaped frame, if
// one is present and usable. Malformed frames have no id.
func ExtractID(data []byte) (string, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", false
	}
	return canonicalID(env.ID)
}

// canonicalID maps a raw JSON id value to its canonical string form.
// Numbers keep their JSON text, strings their value. Null, objects, arrays,
// booleans, and the empty string are unusable as correlation ids.
func canonicalID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	case 'n', 't', 'f', '{', '[':
		return "", false
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	}
}

// FormatID renders a dispatcher-assigned counter value as a canonical id.
func FormatID(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// BuildRequest marshals an outbound request frame, injecting the assigned id
// and command alongside the caller's fields. Caller fields named "id" or
// "command" are overwritten.
func BuildRequest(id uint64, command string, fields map[string]any) ([]byte, error) {
	frame := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		frame[k] = v
	}
	frame["id"] = id
	frame["command"] = command

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return data, nil
}
