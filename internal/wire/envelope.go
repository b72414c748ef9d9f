// Package wire decodes the layered frame format of the messaging
// service: an outer JSON envelope, a base64 body, an encrypted compact
// binary object inside, and a handful of recognizable message shapes on
// top. Unknown shapes degrade to Unrecognized; nothing in this package
// terminates the caller's read loop.
package wire

import (
	"encoding/json"
)

// Envelope is one inbound frame as received from the socket.
type Envelope struct {
	LWP     string            `json:"lwp,omitempty"`
	Code    int               `json:"code,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// MessageID returns the frame's message id, if any.
func (e *Envelope) MessageID() string {
	return e.Headers["mid"]
}

// IsHeartbeatAck reports whether the frame acknowledges a heartbeat:
// top-level code 200 with a message id present.
func (e *Envelope) IsHeartbeatAck() bool {
	return e.Code == 200 && e.Headers["mid"] != ""
}

// syncBody is the body shape of a sync push frame.
type syncBody struct {
	SyncPushPackage struct {
		Data []syncItem `json:"data"`
	} `json:"syncPushPackage"`
}

type syncItem struct {
	Data string `json:"data"`
}

// SyncData extracts the first sync payload from the envelope body.
// The second return is false when the frame is not a sync push package
// or carries no payload.
func (e *Envelope) SyncData() (string, bool) {
	if len(e.Body) == 0 {
		return "", false
	}
	var body syncBody
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return "", false
	}
	if len(body.SyncPushPackage.Data) == 0 {
		return "", false
	}
	data := body.SyncPushPackage.Data[0].Data
	if data == "" {
		return "", false
	}
	return data, true
}
