// ABOUTME: Tests for the message envelope, payload variant, and JSON codec.
// ABOUTME: Covers defensive parsing, raw fallback, and wire round-trips.

package message

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_StructuredInput(t *testing.T) {
	p := ParsePayload(`{"symbol":"AAPL","qty":100}`)

	s, ok := p.(Structured)
	require.True(t, ok, "valid JSON should parse as Structured")

	obj, ok := s.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AAPL", obj["symbol"])
	assert.Equal(t, float64(100), obj["qty"])
}

func TestParsePayload_MalformedFallsBackToRaw(t *testing.T) {
	p := ParsePayload(`{not json`)

	r, ok := p.(Raw)
	require.True(t, ok, "malformed input should fall back to Raw")
	assert.Equal(t, `{not json`, r.Text)
	assert.Equal(t, `{not json`, PayloadValue(p))
}

func TestParsePayload_ScalarAndEmpty(t *testing.T) {
	assert.Equal(t, Structured{Value: float64(42)}, ParsePayload(`42`))
	assert.Equal(t, Structured{Value: "hello"}, ParsePayload(`"hello"`))
	assert.Equal(t, Structured{Value: true}, ParsePayload(`true`))
	assert.Nil(t, ParsePayload(""))
	assert.Equal(t, Raw{Text: "hello"}, ParsePayload("hello"))
}

func TestPayloadValue(t *testing.T) {
	assert.Equal(t, "text", PayloadValue(Raw{Text: "text"}))
	assert.Equal(t, map[string]any{"a": float64(1)}, PayloadValue(Structured{Value: map[string]any{"a": float64(1)}}))
	assert.Nil(t, PayloadValue(nil))
}

func TestNew_StampsIdentityAndTimestamp(t *testing.T) {
	a := New("orders.place", nil)
	b := New("orders.place", nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID, "ids must be unique")
	assert.False(t, a.Timestamp.IsZero())
	assert.Equal(t, "orders.place", a.Type)
}

func TestCodec_RoundTripStructuredPayload(t *testing.T) {
	msg := New("orders.place", ParsePayload(`{"symbol":"AAPL","qty":100}`))
	msg.From = "orders"
	msg.To = "broadcast"

	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.Type, got.Type)
	assert.Equal(t, msg.To, got.To)
	assert.Equal(t, msg.From, got.From)
	assert.Equal(t, PayloadValue(msg.Payload), PayloadValue(got.Payload))
}

func TestCodec_RawPayloadCrossesAsString(t *testing.T) {
	msg := New("diag.dump", Raw{Text: `{not json`})
	msg.From = SenderPlatform

	data, err := Encode(msg)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"payload":"{not json"`),
		"raw payload should serialize as a JSON string, got %s", data)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, PayloadValue(got.Payload))
}

func TestCodec_AbsentPayloadOmitted(t *testing.T) {
	msg := New("panel.created", nil)
	msg.From = SenderPlatform

	data, err := Encode(msg)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	_, present := fields["payload"]
	assert.False(t, present, "absent payload must be omitted from the wire")

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Nil(t, got.Payload)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{broken`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"id":"x","from":"platform"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing type")
}
