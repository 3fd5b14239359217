// ABOUTME: Message router: accepts envelopes from panels and the platform,
// ABOUTME: resolves their target scope, and dispatches on a single worker.

package bus

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/internal/message"
)

// ErrRouterClosed indicates a request issued against a router that has shut
// down. Fire-and-forget routes after Close stay silent drops.
var ErrRouterClosed = errors.New("router closed")

// defaultQueueSize bounds the dispatch queue when the caller passes zero.
const defaultQueueSize = 256

// Endpoint is a delivery target attached to the router. Panels implement it;
// the router never learns what a panel is.
type Endpoint interface {
	// ID returns the endpoint's unique address.
	ID() string
	// Deliver hands an envelope to the endpoint's inbound path. It must not
	// block the dispatch goroutine.
	Deliver(msg *message.Message)
}

// Router is the mediator between panels and the platform. Route is
// fire-and-forget: envelopes are queued onto a single dispatch goroutine
// which preserves submission order.
type Router struct {
	logger   *slog.Logger
	platform *Subscriptions

	mu        sync.RWMutex
	endpoints map[string]Endpoint

	queue     chan *message.Message
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRouter creates a router and starts its dispatch goroutine. queueSize
// bounds the number of undelivered envelopes; zero or negative selects the
// default. Pass nil logger for default.
func NewRouter(logger *slog.Logger, queueSize int) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	r := &Router{
		logger:    logger.With("component", "router"),
		endpoints: make(map[string]Endpoint),
		queue:     make(chan *message.Message, queueSize),
		done:      make(chan struct{}),
	}
	r.platform = NewSubscriptions(logger)

	r.wg.Add(1)
	go r.run()
	return r
}

// Route enqueues an envelope for dispatch and returns immediately. Missing
// id and timestamp are stamped here. When the queue is full the envelope is
// dropped with a warning; after Close every route is dropped.
func (r *Router) Route(msg *message.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	select {
	case <-r.done:
		r.logger.Debug("route after close, dropping message", "type", msg.Type)
	default:
		select {
		case r.queue <- msg:
		default:
			r.logger.Warn("dispatch queue full, dropping message",
				"type", msg.Type,
				"to", msg.To,
				"from", msg.From)
		}
	}
}

// On registers a platform-scope handler for a type (or Wildcard) and returns
// its handler id.
func (r *Router) On(msgType string, fn Handler) string {
	return r.platform.On(msgType, fn)
}

// Off removes a platform-scope handler; no-op if already removed.
func (r *Router) Off(msgType, handlerID string) {
	r.platform.Off(msgType, handlerID)
}

// Attach registers an endpoint as a live delivery target. Attaching an id
// that is already present replaces the previous endpoint.
func (r *Router) Attach(ep Endpoint) {
	r.mu.Lock()
	if _, exists := r.endpoints[ep.ID()]; exists {
		r.logger.Warn("replacing attached endpoint", "endpoint_id", ep.ID())
	}
	r.endpoints[ep.ID()] = ep
	total := len(r.endpoints)
	r.mu.Unlock()

	r.logger.Debug("endpoint attached", "endpoint_id", ep.ID(), "total", total)
}

// Detach removes an endpoint. Envelopes already queued for it are dropped
// silently when dispatch finds the id gone.
func (r *Router) Detach(id string) {
	r.mu.Lock()
	_, existed := r.endpoints[id]
	delete(r.endpoints, id)
	total := len(r.endpoints)
	r.mu.Unlock()

	if existed {
		r.logger.Debug("endpoint detached", "endpoint_id", id, "total", total)
	}
}

// run is the dispatch goroutine.
func (r *Router) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case msg := <-r.queue:
			r.dispatch(msg)
		}
	}
}

// dispatch resolves an envelope's target scope and delivers it.
func (r *Router) dispatch(msg *message.Message) {
	switch msg.To {
	case "":
		// Platform-handled: platform subscriptions only.
		r.platform.Dispatch(msg)

	case message.TargetBroadcast:
		r.mu.RLock()
		targets := make([]Endpoint, 0, len(r.endpoints))
		for _, ep := range r.endpoints {
			targets = append(targets, ep)
		}
		r.mu.RUnlock()

		for _, ep := range targets {
			ep.Deliver(msg)
		}
		r.platform.DispatchWildcard(msg)

	default:
		target := msg.To
		if target == message.TargetSelf {
			target = msg.From
		}

		r.mu.RLock()
		ep, ok := r.endpoints[target]
		r.mu.RUnlock()

		if !ok {
			// Unknown target is a no-op, not an error.
			r.logger.Debug("no live target for message",
				"type", msg.Type,
				"to", msg.To)
			return
		}
		ep.Deliver(msg)
	}
}

// SubscriptionCount reports the platform-scope handler count for a type.
func (r *Router) SubscriptionCount(msgType string) int {
	return r.platform.Count(msgType)
}

// EndpointCount reports the number of attached endpoints.
func (r *Router) EndpointCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

// Closed reports whether Close has been called.
func (r *Router) Closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Close stops the dispatch goroutine and clears platform subscriptions.
// Envelopes still queued are discarded.
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.platform.Close()
		r.logger.Debug("router closed")
	})
}
