// ABOUTME: Message envelope shared by the router and the bridge boundary.
// ABOUTME: Defines addressing constants and the JSON codec for the wire format.

package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// SenderPlatform is the From value for messages originated by the host
	// itself rather than a panel.
	SenderPlatform = "platform"

	// TargetBroadcast fans a message out to every live panel.
	TargetBroadcast = "broadcast"

	// TargetSelf routes a message back to the sending panel.
	TargetSelf = "self"
)

// Message is the envelope routed between panels and the platform. An empty To
// means the message is platform-handled: delivered only to platform-scope
// subscriptions, never to a panel.
type Message struct {
	ID              string
	Type            string
	To              string
	From            string
	Payload         Payload
	ExpectsResponse bool
	Timestamp       time.Time
}

// New creates an envelope with a fresh id and UTC timestamp. From and To are
// left for the caller to stamp.
func New(msgType string, payload Payload) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// wireMessage is the JSON shape crossing the bridge boundary.
type wireMessage struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	To              string          `json:"to,omitempty"`
	From            string          `json:"from"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ExpectsResponse bool            `json:"expectsResponse"`
	Timestamp       time.Time       `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (m *Message) MarshalJSON() ([]byte, error) {
	payload, err := marshalPayload(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for %q: %w", m.Type, err)
	}
	return json.Marshal(wireMessage{
		ID:              m.ID,
		Type:            m.Type,
		To:              m.To,
		From:            m.From,
		Payload:         payload,
		ExpectsResponse: m.ExpectsResponse,
		Timestamp:       m.Timestamp,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	payload, err := unmarshalPayload(w.Payload)
	if err != nil {
		return fmt.Errorf("decode payload for %q: %w", w.Type, err)
	}
	m.ID = w.ID
	m.Type = w.Type
	m.To = w.To
	m.From = w.From
	m.Payload = payload
	m.ExpectsResponse = w.ExpectsResponse
	m.Timestamp = w.Timestamp
	return nil
}

// Encode serializes an envelope for the push into a content surface.
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses an envelope arriving from a content surface. The type field
// is the only one required; everything else defaults.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("decode message: missing type")
	}
	return &m, nil
}
