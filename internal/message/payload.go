// ABOUTME: Tagged payload variant: parsed structured data or raw string fallback.
// ABOUTME: ParsePayload never fails; malformed input is preserved verbatim.

package message

import "encoding/json"

// Payload is the closed set of payload shapes a message can carry. Concrete
// types implement the unexported isPayload marker. An absent payload is a nil
// Payload.
type Payload interface{ isPayload() }

// Structured is a payload that parsed as valid JSON.
type Structured struct {
	Value any
}

// isPayload implements the Payload interface for Structured.
func (Structured) isPayload() {}

// Raw is a payload that failed structured parsing and is preserved as the
// original string.
type Raw struct {
	Text string
}

// isPayload implements the Payload interface for Raw.
func (Raw) isPayload() {}

// ParsePayload interprets text arriving from the content runtime. Valid JSON
// becomes Structured, anything else becomes Raw, and the empty string is an
// absent payload. It never returns an error: malformed input falls back to
// the literal string rather than failing the send.
func ParsePayload(text string) Payload {
	if text == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return Raw{Text: text}
	}
	return Structured{Value: v}
}

// StructuredValue wraps an already-parsed Go value as a Structured payload.
// Nil values map to an absent payload.
func StructuredValue(v any) Payload {
	if v == nil {
		return nil
	}
	return Structured{Value: v}
}

// PayloadValue unwraps a payload for handler consumption: the parsed value
// for Structured, the original text for Raw, nil when absent.
func PayloadValue(p Payload) any {
	switch p := p.(type) {
	case Structured:
		return p.Value
	case Raw:
		return p.Text
	default:
		return nil
	}
}

// marshalPayload renders a payload as its wire representation. Structured
// payloads marshal as their value, Raw payloads as a JSON string, absent
// payloads as nil (omitted from the envelope).
func marshalPayload(p Payload) (json.RawMessage, error) {
	switch p := p.(type) {
	case Structured:
		return json.Marshal(p.Value)
	case Raw:
		return json.Marshal(p.Text)
	default:
		return nil, nil
	}
}

// unmarshalPayload decodes a payload field from an envelope. A payload field
// inside a valid envelope is valid JSON by construction, so the result is
// always Structured; Raw only arises on the bridge's string-argument path.
func unmarshalPayload(raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return Structured{Value: v}, nil
}
