// ABOUTME: Panel registry and lifecycle manager: definition table, live map,
// ABOUTME: idempotent open with single in-flight creation, atomic close.

package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/atriumhq/atrium/internal/bus"
	"github.com/atriumhq/atrium/internal/message"
	"github.com/atriumhq/atrium/internal/uithread"
)

// ErrDefinitionNotFound indicates an open of an id with no registered
// definition.
var ErrDefinitionNotFound = errors.New("panel definition not found")

// ErrDuplicateID indicates a create for an id that is already live.
var ErrDuplicateID = errors.New("panel id already in use")

// Lifecycle event types routed as broadcasts when panels come and go. The
// payload carries the panel id.
const (
	EventPanelCreated = "panel.created"
	EventPanelClosed  = "panel.closed"
)

// suggestionMaxDistance bounds how far a "did you mean" candidate may be
// from the requested id.
const suggestionMaxDistance = 3

// entry is a live-map slot. It is inserted before initialization starts so
// concurrent opens observe the in-flight creation; ready closes when the
// creation settles, with err set on failure.
type entry struct {
	panel *Panel
	ready chan struct{}
	err   error
}

func (e *entry) settled() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// RegistryParams configures a Registry.
type RegistryParams struct {
	Router  *bus.Router
	Factory Factory
	UI      *uithread.Dispatcher

	// EndpointBuffer bounds each panel's outbound queue; zero selects the
	// default.
	EndpointBuffer int
	Logger         *slog.Logger
}

// Registry owns the set of live panels and the definition table. It
// guarantees at most one live panel per id, even under concurrent opens.
type Registry struct {
	router     *bus.Router
	factory    Factory
	ui         *uithread.Dispatcher
	bufferSize int

	base   *slog.Logger
	logger *slog.Logger

	mu   sync.Mutex
	defs map[string]Definition
	live map[string]*entry
}

// NewRegistry creates a registry. Pass a nil Logger for default.
func NewRegistry(params RegistryParams) *Registry {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		router:     params.Router,
		factory:    params.Factory,
		ui:         params.UI,
		bufferSize: params.EndpointBuffer,
		base:       logger,
		logger:     logger.With("component", "registry"),
		defs:       make(map[string]Definition),
		live:       make(map[string]*entry),
	}
}

// RegisterDefinition upserts a definition. Re-registering an id replaces the
// template without touching panels already open from it.
func (r *Registry) RegisterDefinition(def Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("register definition: %w", err)
	}
	def = def.withDefaults()

	r.mu.Lock()
	_, existed := r.defs[def.ID]
	r.defs[def.ID] = def
	r.mu.Unlock()

	if existed {
		r.logger.Debug("panel definition replaced", "definition_id", def.ID)
	} else {
		r.logger.Debug("panel definition registered",
			"definition_id", def.ID,
			"title", def.Title)
	}
	return nil
}

// KnownDefinitions lists registered definition ids, sorted.
func (r *Registry) KnownDefinitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.knownLocked()
}

func (r *Registry) knownLocked() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Open returns the live panel for id, creating it from its definition when
// needed. An already-live panel is brought to the foreground. Concurrent
// opens while the first creation is in flight all receive the same instance:
// the placeholder entry is in the live map before initialization starts, and
// late callers await it.
func (r *Registry) Open(ctx context.Context, id string) (*Panel, error) {
	r.mu.Lock()
	if e, ok := r.live[id]; ok {
		r.mu.Unlock()
		if e.settled() {
			if e.err != nil {
				return nil, e.err
			}
			r.show(e.panel)
			return e.panel, nil
		}
		return r.await(ctx, e)
	}

	def, ok := r.defs[id]
	if !ok {
		known := r.knownLocked()
		r.mu.Unlock()
		return nil, notFoundError(id, known)
	}

	e := &entry{ready: make(chan struct{})}
	r.live[id] = e
	r.mu.Unlock()

	return r.construct(ctx, def, e)
}

// Create constructs an ad hoc panel not tied to a registered definition. An
// empty id gets a generated one.
func (r *Registry) Create(ctx context.Context, def Definition) (*Panel, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("create panel: %w", err)
	}
	def = def.withDefaults()

	r.mu.Lock()
	if _, exists := r.live[def.ID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, def.ID)
	}
	e := &entry{ready: make(chan struct{})}
	r.live[def.ID] = e
	r.mu.Unlock()

	return r.construct(ctx, def, e)
}

// await blocks until an in-flight creation settles.
func (r *Registry) await(ctx context.Context, e *entry) (*Panel, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.panel, nil
}

// construct builds and initializes a panel for an already-placed entry. On
// failure the placeholder is removed before waiters are released, so a retry
// starts fresh.
func (r *Registry) construct(ctx context.Context, def Definition, e *entry) (*Panel, error) {
	p, err := r.build(def)
	if err == nil {
		err = p.initialize(ctx)
	}
	if err != nil {
		r.mu.Lock()
		delete(r.live, def.ID)
		r.mu.Unlock()
		if p != nil {
			p.shutdown()
		}
		e.err = err
		close(e.ready)
		r.logger.Error("panel creation failed", "panel_id", def.ID, "error", err)
		return nil, err
	}

	e.panel = p
	r.router.Attach(p)
	close(e.ready)
	r.watchClose(p)

	r.logger.Info("=== PANEL OPENED ===",
		"panel_id", p.id,
		"title", p.def.Title,
		"total_panels", r.Len())
	r.emitLifecycle(EventPanelCreated, p.id)
	return p, nil
}

func (r *Registry) build(def Definition) (*Panel, error) {
	surface, window, err := r.factory.Build(def)
	if err != nil {
		return nil, fmt.Errorf("build panel %q: %w", def.ID, err)
	}
	return newPanel(def, surface, window, r.bufferSize, r.base), nil
}

// Close requests a panel to close; removal happens when the surface reports
// closed. Reports whether a close was initiated.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	e, ok := r.live[id]
	r.mu.Unlock()

	if !ok || !e.settled() || e.err != nil {
		r.logger.Debug("close requested for unknown panel", "panel_id", id)
		return false
	}

	p := e.panel
	if !p.beginClose() {
		return false
	}

	r.logger.Info("panel close requested", "panel_id", id)
	r.ui.Post(func() error { return p.window.Close() })
	return true
}

// CloseAll closes every live panel and waits for their surfaces to report
// closed. Shutdown path.
func (r *Registry) CloseAll(ctx context.Context) error {
	panels := r.All()
	for _, p := range panels {
		r.Close(p.id)
	}
	for _, p := range panels {
		select {
		case <-p.surface.Closed():
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d panels to close: %w", r.Len(), ctx.Err())
		}
	}
	return nil
}

// watchClose completes the lifecycle when the surface reports closed,
// whether the close was requested through the registry or user-initiated.
// Detach precedes removal so no further deliveries reach the panel.
func (r *Registry) watchClose(p *Panel) {
	go func() {
		<-p.surface.Closed()
		p.beginClose()
		r.router.Detach(p.id)

		r.mu.Lock()
		delete(r.live, p.id)
		total := r.lenLocked()
		r.mu.Unlock()

		p.shutdown()
		r.logger.Info("=== PANEL CLOSED ===", "panel_id", p.id, "total_panels", total)
		r.emitLifecycle(EventPanelClosed, p.id)
	}()
}

// Get returns the live panel for id. In-flight creations are not reachable.
func (r *Registry) Get(id string) (*Panel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.live[id]
	if !ok || !e.settled() || e.err != nil {
		return nil, false
	}
	return e.panel, true
}

// All returns the live panels sorted by id.
func (r *Registry) All() []*Panel {
	r.mu.Lock()
	panels := make([]*Panel, 0, len(r.live))
	for _, e := range r.live {
		if e.settled() && e.err == nil {
			panels = append(panels, e.panel)
		}
	}
	r.mu.Unlock()

	sort.Slice(panels, func(i, j int) bool { return panels[i].id < panels[j].id })
	return panels
}

// Len reports the number of live panels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *Registry) lenLocked() int {
	n := 0
	for _, e := range r.live {
		if e.settled() && e.err == nil {
			n++
		}
	}
	return n
}

// SendMessage routes a platform-originated message to one live panel.
// Reports whether the target was live when the send was issued; delivery
// itself stays fire-and-forget.
func (r *Registry) SendMessage(id, msgType string, payload message.Payload) bool {
	if _, ok := r.Get(id); !ok {
		r.logger.Debug("send to unknown panel dropped", "panel_id", id, "type", msgType)
		return false
	}

	msg := message.New(msgType, payload)
	msg.From = message.SenderPlatform
	msg.To = id
	r.router.Route(msg)
	return true
}

// Broadcast routes a platform-originated message to every live panel.
func (r *Registry) Broadcast(msgType string, payload message.Payload) {
	msg := message.New(msgType, payload)
	msg.From = message.SenderPlatform
	msg.To = message.TargetBroadcast
	r.router.Route(msg)
}

// show brings a live panel to the foreground on the control thread.
func (r *Registry) show(p *Panel) {
	r.ui.Post(func() error { return p.window.Show() })
	r.logger.Debug("panel shown", "panel_id", p.id)
}

// emitLifecycle broadcasts a lifecycle event so live panels and platform
// wildcard observers see it.
func (r *Registry) emitLifecycle(event, panelID string) {
	msg := message.New(event, message.StructuredValue(map[string]any{"id": panelID}))
	msg.From = message.SenderPlatform
	msg.To = message.TargetBroadcast
	r.router.Route(msg)
}

// notFoundError builds the diagnostic for an open of an unregistered id:
// the requested id, the known ids, and a near-miss suggestion when one is
// plausible.
func notFoundError(id string, known []string) error {
	list := "none registered"
	if len(known) > 0 {
		list = strings.Join(known, ", ")
	}
	if suggestion := nearest(id, known); suggestion != "" {
		return fmt.Errorf("%w: %q (known: %s; did you mean %q?)", ErrDefinitionNotFound, id, list, suggestion)
	}
	return fmt.Errorf("%w: %q (known: %s)", ErrDefinitionNotFound, id, list)
}

// nearest returns the known id closest to the requested one, when close
// enough to be a plausible typo.
func nearest(id string, known []string) string {
	best := ""
	bestDist := suggestionMaxDistance + 1
	for _, candidate := range known {
		if d := levenshtein.ComputeDistance(id, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
