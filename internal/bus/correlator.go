// ABOUTME: Request/response correlator layered on the router.
// ABOUTME: Turns fire-and-forget sends into awaitable calls with timeouts.

package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/internal/message"
)

// ErrRequestTimeout indicates no response arrived within the deadline.
var ErrRequestTimeout = errors.New("request timed out")

// DefaultRequestTimeout applies when a request is issued with no deadline.
const DefaultRequestTimeout = 5 * time.Second

// requestSuffix is appended to the base type of an outbound request.
const requestSuffix = ".request"

// ResponseType composes the reply type a responder must use for a request.
func ResponseType(baseType, correlationID string) string {
	return baseType + ".response." + correlationID
}

// Correlator matches responses to in-flight requests. Each request installs
// a one-shot subscription on its private response type; exactly one of
// resolve or timeout settles a request, and responses arriving after
// settlement are dropped silently.
type Correlator struct {
	router *Router
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan message.Payload // correlationID -> one-shot resolution
}

// NewCorrelator creates a correlator over the given router. Pass nil logger
// for default.
func NewCorrelator(router *Router, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		router:  router,
		logger:  logger.With("component", "correlator"),
		pending: make(map[string]chan message.Payload),
	}
}

// Request sends a platform-scoped request and blocks until a response,
// the timeout, or ctx cancellation. Zero timeout selects the default.
func (c *Correlator) Request(ctx context.Context, msgType string, payload message.Payload, timeout time.Duration) (message.Payload, error) {
	return c.request(ctx, "", msgType, payload, timeout)
}

// RequestTo behaves like Request with the outbound envelope addressed to a
// specific panel.
func (c *Correlator) RequestTo(ctx context.Context, target, msgType string, payload message.Payload, timeout time.Duration) (message.Payload, error) {
	return c.request(ctx, target, msgType, payload, timeout)
}

func (c *Correlator) request(ctx context.Context, target, msgType string, payload message.Payload, timeout time.Duration) (message.Payload, error) {
	// A closed router can never deliver the response; fail before installing
	// anything rather than waiting out the timeout.
	if c.router.Closed() {
		return nil, fmt.Errorf("%w: request %q not sent", ErrRouterClosed, msgType)
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	correlationID := uuid.NewString()
	respCh := make(chan message.Payload, 1)

	c.mu.Lock()
	c.pending[correlationID] = respCh
	c.mu.Unlock()

	responseType := ResponseType(msgType, correlationID)
	subID := c.router.On(responseType, func(resp *message.Message) error {
		c.deliver(correlationID, resp.Payload)
		return nil
	})

	// Both settlement paths run through here: the subscription and the
	// pending entry are gone before the caller sees a result, so a late
	// response finds nothing to resurrect.
	defer func() {
		c.router.Off(responseType, subID)
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
	}()

	body := map[string]any{"correlationId": correlationID}
	if v := message.PayloadValue(payload); v != nil {
		body["data"] = v
	}
	req := message.New(msgType+requestSuffix, message.StructuredValue(body))
	req.From = message.SenderPlatform
	req.To = target
	req.ExpectsResponse = true
	c.router.Route(req)

	c.logger.Debug("request sent",
		"type", msgType,
		"correlation_id", correlationID,
		"timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p := <-respCh:
		return p, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no response to %q within %s", ErrRequestTimeout, msgType, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliver resolves the pending request for a correlation id. Responses for
// ids that already settled are dropped.
func (c *Correlator) deliver(correlationID string, payload message.Payload) {
	c.mu.Lock()
	ch, ok := c.pending[correlationID]
	if ok {
		delete(c.pending, correlationID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response after request settled, dropping",
			"correlation_id", correlationID)
		return
	}
	// Buffered(1) and the entry was just removed, so this never blocks and
	// never races a second send.
	ch <- payload
}

// PendingCount reports the number of unsettled requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ParseRequest extracts the correlation id and caller data from an inbound
// request envelope.
func ParseRequest(msg *message.Message) (correlationID string, data any, err error) {
	obj, ok := message.PayloadValue(msg.Payload).(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("message %q does not carry a request payload", msg.Type)
	}
	id, ok := obj["correlationId"].(string)
	if !ok || id == "" {
		return "", nil, fmt.Errorf("message %q has no correlation id", msg.Type)
	}
	return id, obj["data"], nil
}

// Respond routes a reply to a request envelope. The reply is platform-scoped
// so the requester's one-shot subscription sees it.
func Respond(r *Router, from string, req *message.Message, payload message.Payload) error {
	correlationID, _, err := ParseRequest(req)
	if err != nil {
		return err
	}
	baseType := strings.TrimSuffix(req.Type, requestSuffix)

	resp := message.New(ResponseType(baseType, correlationID), payload)
	resp.From = from
	r.Route(resp)
	return nil
}
