package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InboundFrame is what a client sends. Timestamp is the client's own clock
// and is never used for ordering or storage.
type InboundFrame struct {
	Message   string  `json:"message"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// OutboundFrame is fanned out to every subscriber of a room.
type OutboundFrame struct {
	Message    string `json:"message"`
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name"`
	Timestamp  string `json:"timestamp"`
}

// ErrorFrame is sent only to the connection whose request failed.
type ErrorFrame struct {
	Error string `json:"error"`
}

// ParseInbound decodes and validates a client frame. Unknown fields,
// trailing data and blank messages are rejected as ErrMalformedFrame.
func ParseInbound(raw []byte) (InboundFrame, error) {
	var frame InboundFrame

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&frame); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if dec.More() {
		return InboundFrame{}, fmt.Errorf("%w: trailing data", ErrMalformedFrame)
	}
	if strings.TrimSpace(frame.Message) == "" {
		return InboundFrame{}, fmt.Errorf("%w: empty message", ErrMalformedFrame)
	}
	return frame, nil
}

// FormatTimestamp renders server timestamps as ISO-8601 in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
