// ABOUTME: Panel: an addressable UI surface with its own lifecycle, inbound
// ABOUTME: subscription table, and outbound endpoint into its content runtime.

package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atriumhq/atrium/internal/bus"
	"github.com/atriumhq/atrium/internal/message"
)

// Panel is one live UI surface. It exclusively owns its content surface, its
// window handle, its inbound handler table, and its outbound endpoint; the
// registry holds a non-owning entry keyed by id.
//
// Panel implements bus.Endpoint: delivery runs the panel's own handlers and
// pushes the envelope into the content surface.
type Panel struct {
	id  string
	def Definition

	mu    sync.Mutex
	state State

	surface Surface
	window  Window

	subs     *bus.Subscriptions
	endpoint *Endpoint
	logger   *slog.Logger
}

// newPanel wires a panel from its definition and collaborator pair. The
// endpoint pump starts immediately; lifecycle stays at Created until the
// registry runs initialization.
func newPanel(def Definition, surface Surface, window Window, bufferSize int, logger *slog.Logger) *Panel {
	scoped := logger.With("panel_id", def.ID)
	return &Panel{
		id:       def.ID,
		def:      def,
		state:    StateCreated,
		surface:  surface,
		window:   window,
		subs:     bus.NewSubscriptions(scoped),
		endpoint: NewEndpoint(def.ID, surface, bufferSize, scoped),
		logger:   scoped.With("component", "panel"),
	}
}

// ID returns the panel's unique address. Implements bus.Endpoint.
func (p *Panel) ID() string { return p.id }

// Title returns the panel's window title.
func (p *Panel) Title() string { return p.def.Title }

// Dimensions returns the panel's chrome geometry.
func (p *Panel) Dimensions() Dimensions {
	return Dimensions{Width: p.def.Width, Height: p.def.Height}
}

// Style returns the panel's window style flags.
func (p *Panel) Style() Style {
	return Style{
		Frameless:   p.def.Frameless,
		Resizable:   p.def.Resizable,
		CanMaximize: p.def.CanMaximize,
		CanMinimize: p.def.CanMinimize,
	}
}

// ContentRef returns the opaque locator the surface was navigated to.
func (p *Panel) ContentRef() string { return p.def.Content }

// State returns the panel's current lifecycle state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Window returns the chrome handle. Callers must marshal every call onto the
// control thread.
func (p *Panel) Window() Window { return p.window }

// On registers a handler for the panel's own inbound traffic and returns its
// handler id.
func (p *Panel) On(msgType string, fn bus.Handler) string {
	return p.subs.On(msgType, fn)
}

// Off removes a panel-scope handler; no-op if already removed.
func (p *Panel) Off(msgType, handlerID string) {
	p.subs.Off(msgType, handlerID)
}

// SubscriptionCount reports the panel-scope handler count for a type.
func (p *Panel) SubscriptionCount(msgType string) int {
	return p.subs.Count(msgType)
}

// Deliver hands an envelope to the panel: its own handlers run and the
// envelope is pushed into the content surface. Panels that began closing
// drop deliveries; delivery during the closing window is best-effort.
// Implements bus.Endpoint.
func (p *Panel) Deliver(msg *message.Message) {
	if p.State() >= StateClosing {
		p.logger.Debug("delivery to closing panel dropped", "type", msg.Type)
		return
	}
	p.subs.Dispatch(msg)
	p.endpoint.Enqueue(msg)
}

// initialize drives the surface to Ready: Initializing, surface bring-up,
// navigation to the content locator, then Ready.
func (p *Panel) initialize(ctx context.Context) error {
	p.setState(StateInitializing)

	if err := p.surface.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize content surface for %q: %w", p.id, err)
	}
	if err := p.surface.Navigate(p.def.Content); err != nil {
		return fmt.Errorf("navigate panel %q to %q: %w", p.id, p.def.Content, err)
	}

	p.setState(StateReady)
	return nil
}

// beginClose moves the panel to Closing. Reports false when the panel was
// already closing or closed.
func (p *Panel) beginClose() bool {
	p.mu.Lock()
	if p.state >= StateClosing {
		p.mu.Unlock()
		return false
	}
	prev := p.state
	p.state = StateClosing
	p.mu.Unlock()

	p.logger.Debug("panel state changed", "from", prev.String(), "to", StateClosing.String())
	return true
}

// shutdown tears the panel down: terminal state, pump stopped, handlers
// cleared. Called after the surface reported closed, or when creation failed.
func (p *Panel) shutdown() {
	p.setState(StateClosed)
	p.endpoint.Close()
	p.subs.Close()
}

func (p *Panel) setState(s State) {
	p.mu.Lock()
	prev := p.state
	p.state = s
	p.mu.Unlock()

	p.logger.Debug("panel state changed", "from", prev.String(), "to", s.String())
}
