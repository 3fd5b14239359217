// ABOUTME: Tests for request/response correlation, timeouts, and late responses.
// ABOUTME: Verifies one-shot settlement and subscription cleanup.

package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/message"
)

func TestCorrelator_ResolvesWithResponderPayload(t *testing.T) {
	r := NewRouter(nil, 0)
	defer r.Close()
	c := NewCorrelator(r, nil)

	r.On("config.get.request", func(req *message.Message) error {
		return Respond(r, message.SenderPlatform, req, message.StructuredValue(map[string]any{"theme": "dark"}))
	})

	got, err := c.Request(t.Context(), "config.get", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark"}, message.PayloadValue(got))

	assert.Equal(t, 0, c.PendingCount())
	assert.Equal(t, 1, r.platform.Len(),
		"only the responder's subscription remains after settlement")
}

func TestCorrelator_RequestCarriesCallerData(t *testing.T) {
	r := NewRouter(nil, 0)
	defer r.Close()
	c := NewCorrelator(r, nil)

	r.On("orders.place.request", func(req *message.Message) error {
		correlationID, data, err := ParseRequest(req)
		if err != nil {
			return err
		}
		assert.NotEmpty(t, correlationID)
		assert.Equal(t, map[string]any{"symbol": "AAPL", "qty": float64(100)}, data)
		return Respond(r, message.SenderPlatform, req, message.StructuredValue(map[string]any{"accepted": true}))
	})

	got, err := c.Request(t.Context(), "orders.place", message.ParsePayload(`{"symbol":"AAPL","qty":100}`), time.Second)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"accepted": true}, message.PayloadValue(got))
}

func TestCorrelator_TimeoutWhenNoResponder(t *testing.T) {
	r := NewRouter(nil, 0)
	defer r.Close()
	c := NewCorrelator(r, nil)

	start := time.Now()
	_, err := c.Request(t.Context(), "nobody.home", nil, 50*time.Millisecond)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.Contains(t, err.Error(), "nobody.home", "timeout error must name the message type")
	assert.Contains(t, err.Error(), "50ms", "timeout error must name the deadline")
	assert.GreaterOrEqual(t, elapsed, 45*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	assert.Equal(t, 0, c.PendingCount())
	assert.Equal(t, 0, r.platform.Len(), "no leftover subscription entries after timeout")
}

func TestCorrelator_LateResponseIsDropped(t *testing.T) {
	r := NewRouter(nil, 0)
	defer r.Close()
	c := NewCorrelator(r, nil)

	// Responder that holds the request instead of answering.
	var mu sync.Mutex
	var held *message.Message
	r.On("slow.op.request", func(req *message.Message) error {
		mu.Lock()
		held = req
		mu.Unlock()
		return nil
	})

	_, err := c.Request(t.Context(), "slow.op", nil, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrRequestTimeout)

	// Now answer after the caller already timed out.
	mu.Lock()
	req := held
	mu.Unlock()
	require.NotNil(t, req)
	require.NoError(t, Respond(r, message.SenderPlatform, req, message.StructuredValue("too late")))

	// The late response must fall on the floor without disturbing anything.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, c.PendingCount())
	assert.Equal(t, 1, r.platform.Len(), "only the responder's own subscription remains")
}

func TestCorrelator_RequestAfterRouterCloseFailsFast(t *testing.T) {
	r := NewRouter(nil, 0)
	c := NewCorrelator(r, nil)
	r.Close()

	start := time.Now()
	_, err := c.Request(t.Context(), "config.get", nil, time.Second)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrRouterClosed)
	assert.Contains(t, err.Error(), "config.get", "closed-router error must name the message type")
	assert.Less(t, elapsed, 500*time.Millisecond, "must fail well before the timeout")

	assert.Equal(t, 0, c.PendingCount())
	assert.Equal(t, 0, r.platform.Len(), "no subscription installed for a request that was never sent")
}

func TestCorrelator_RequestToReachesTargetPanel(t *testing.T) {
	r := NewRouter(nil, 0)
	defer r.Close()
	c := NewCorrelator(r, nil)

	// A panel endpoint that answers requests delivered to it.
	ep := &responderEndpoint{id: "settings", router: r}
	r.Attach(ep)

	got, err := c.RequestTo(t.Context(), "settings", "settings.read", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"from": "settings"}, message.PayloadValue(got))
}

// responderEndpoint answers every request envelope delivered to it.
type responderEndpoint struct {
	id     string
	router *Router
}

func (e *responderEndpoint) ID() string { return e.id }

func (e *responderEndpoint) Deliver(msg *message.Message) {
	if msg.ExpectsResponse {
		_ = Respond(e.router, e.id, msg, message.StructuredValue(map[string]any{"from": e.id}))
	}
}

func TestCorrelator_ConcurrentRequestsStayIsolated(t *testing.T) {
	r := NewRouter(nil, 0)
	defer r.Close()
	c := NewCorrelator(r, nil)

	// Echo responder: answers each request with its own data.
	r.On("echo.request", func(req *message.Message) error {
		_, data, err := ParseRequest(req)
		if err != nil {
			return err
		}
		return Respond(r, message.SenderPlatform, req, message.StructuredValue(data))
	})

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			payload := message.StructuredValue(map[string]any{"n": float64(i)})
			got, err := c.Request(t.Context(), "echo", payload, time.Second)
			if err != nil {
				t.Errorf("request %d: %v", i, err)
				return
			}
			obj, ok := message.PayloadValue(got).(map[string]any)
			if !ok || obj["n"] != float64(i) {
				t.Errorf("request %d resolved with someone else's payload: %v", i, got)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 0, c.PendingCount())
}

func TestParseRequest_Errors(t *testing.T) {
	_, _, err := ParseRequest(message.New("evt", nil))
	assert.Error(t, err)

	_, _, err = ParseRequest(message.New("evt", message.StructuredValue(map[string]any{"data": "x"})))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correlation id")

	_, _, err = ParseRequest(message.New("evt", message.Raw{Text: "{not json"}))
	assert.Error(t, err)
}

func TestRespond_ComposesResponseType(t *testing.T) {
	r := NewRouter(nil, 0)
	defer r.Close()

	received := make(chan *message.Message, 1)
	r.On("calc.response.abc-123", func(msg *message.Message) error {
		received <- msg
		return nil
	})

	req := message.New("calc.request", message.StructuredValue(map[string]any{
		"correlationId": "abc-123",
		"data":          map[string]any{"op": "sum"},
	}))
	req.From = message.SenderPlatform
	require.NoError(t, Respond(r, "calc-panel", req, message.StructuredValue(float64(7))))

	select {
	case msg := <-received:
		assert.Equal(t, "calc-panel", msg.From)
		assert.Equal(t, float64(7), message.PayloadValue(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response delivery")
	}
}
