// Package bus routes typed messages between panels and the platform.
//
// # Delivery scopes
//
// A message's To field selects the scope. Empty To means platform-handled:
// only platform-scope subscriptions (exact type and "*" wildcard) see it.
// "broadcast" fans out to every attached endpoint plus platform wildcard
// subscribers. "self" resolves to the sender's own endpoint. A concrete id
// is delivered to that endpoint alone. Sends to targets that do not exist
// are silent no-ops, not errors.
//
// # Ordering and containment
//
// A single dispatch goroutine drains the route queue, so deliveries observe
// submission order. Handlers run on that goroutine; a handler error or panic
// is logged and never reaches the sender or other handlers. There is no
// ordering guarantee against a concurrent panel close: a panel closing
// mid-broadcast receives zero or one delivery.
//
// # Requests
//
// The Correlator layers promise-style calls over fire-and-forget routing:
// a request goes out typed "<type>.request" carrying {correlationId, data},
// and the reply comes back typed "<type>.response.<correlationId>" through a
// one-shot subscription. The router itself has no knowledge of requests.
// A request issued after the router has closed fails fast with
// ErrRouterClosed instead of waiting out its timeout.
package bus
