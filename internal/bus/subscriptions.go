// ABOUTME: Subscription table mapping message types to handler sets.
// ABOUTME: Supports exact-type and wildcard channels with contained handler failures.

package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/internal/message"
)

// Wildcard subscribes a handler to every message type. Wildcard handlers
// receive the full envelope, same as exact-type handlers.
const Wildcard = "*"

// Handler processes a delivered envelope. A returned error is logged as a
// handler failure and never propagates to the sender.
type Handler func(msg *message.Message) error

type subscription struct {
	id    string
	fn    Handler
	alive atomic.Bool
}

// Subscriptions is a mutable table of message handlers keyed by type. The
// router owns one for platform scope and every panel owns one for its own
// inbound traffic.
type Subscriptions struct {
	mu     sync.RWMutex
	byType map[string]map[string]*subscription // type -> handlerID -> subscription
	logger *slog.Logger
}

// NewSubscriptions creates an empty table. Pass nil logger for default.
func NewSubscriptions(logger *slog.Logger) *Subscriptions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriptions{
		byType: make(map[string]map[string]*subscription),
		logger: logger.With("component", "subscriptions"),
	}
}

// On registers a handler for the given type (or Wildcard) and returns its
// handler id for later removal.
func (s *Subscriptions) On(msgType string, fn Handler) string {
	sub := &subscription{id: uuid.NewString(), fn: fn}
	sub.alive.Store(true)

	s.mu.Lock()
	if _, ok := s.byType[msgType]; !ok {
		s.byType[msgType] = make(map[string]*subscription)
	}
	s.byType[msgType][sub.id] = sub
	s.mu.Unlock()

	s.logger.Debug("handler added", "type", msgType, "handler_id", sub.id)
	return sub.id
}

// Off removes exactly the handler registered under the given id; it is a
// no-op when the handler was already removed. Off does not wait for an
// in-flight invocation of the handler to finish, but no new invocation
// starts after Off returns.
func (s *Subscriptions) Off(msgType, handlerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.byType[msgType]
	if !ok {
		return
	}
	sub, ok := subs[handlerID]
	if !ok {
		return
	}

	sub.alive.Store(false)
	delete(subs, handlerID)
	if len(subs) == 0 {
		delete(s.byType, msgType)
	}

	s.logger.Debug("handler removed", "type", msgType, "handler_id", handlerID)
}

// Dispatch fans an envelope out to every exact-type handler plus every
// wildcard handler. Fan-out order is unspecified.
func (s *Subscriptions) Dispatch(msg *message.Message) {
	for _, sub := range s.collect(msg.Type, true) {
		s.invoke(sub, msg)
	}
}

// DispatchWildcard fans an envelope out to wildcard handlers only. Broadcast
// delivery uses this for platform scope: exact-type platform subscriptions
// see platform-handled traffic, not broadcasts.
func (s *Subscriptions) DispatchWildcard(msg *message.Message) {
	for _, sub := range s.collect(Wildcard, false) {
		s.invoke(sub, msg)
	}
}

// collect copies matching handlers under the read lock so dispatch never
// holds it while handlers run.
func (s *Subscriptions) collect(msgType string, includeWildcard bool) []*subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.byType[msgType])
	if includeWildcard && msgType != Wildcard {
		n += len(s.byType[Wildcard])
	}
	if n == 0 {
		return nil
	}

	targets := make([]*subscription, 0, n)
	for _, sub := range s.byType[msgType] {
		targets = append(targets, sub)
	}
	if includeWildcard && msgType != Wildcard {
		for _, sub := range s.byType[Wildcard] {
			targets = append(targets, sub)
		}
	}
	return targets
}

// invoke runs one handler with panic and error containment.
func (s *Subscriptions) invoke(sub *subscription, msg *message.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panicked",
				"type", msg.Type,
				"handler_id", sub.id,
				"panic", r)
		}
	}()

	if !sub.alive.Load() {
		return
	}
	if err := sub.fn(msg); err != nil {
		s.logger.Error("handler failed",
			"type", msg.Type,
			"handler_id", sub.id,
			"error", err)
	}
}

// Count reports the number of handlers registered for a type.
func (s *Subscriptions) Count(msgType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byType[msgType])
}

// Len reports the total number of registered handlers across all types.
func (s *Subscriptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, subs := range s.byType {
		total += len(subs)
	}
	return total
}

// Close removes every handler. Used when a panel's table is torn down.
func (s *Subscriptions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for msgType, subs := range s.byType {
		for id, sub := range subs {
			sub.alive.Store(false)
			delete(subs, id)
		}
		delete(s.byType, msgType)
	}
}
