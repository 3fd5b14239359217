// ABOUTME: The capability boundary handed to a panel's content runtime.
// ABOUTME: Two method groups: privileged window control and messaging.

// Package bridge exposes the core to embedded content runtimes. Each panel
// gets one Bridge; calls flow one way, from content into the core, while
// inbound traffic is pushed through the panel's endpoint instead.
package bridge

import (
	"context"
	"log/slog"

	"github.com/atriumhq/atrium/internal/bus"
	"github.com/atriumhq/atrium/internal/message"
	"github.com/atriumhq/atrium/internal/panel"
	"github.com/atriumhq/atrium/internal/uithread"
)

// PanelControl is the privileged group: window management for the owning
// panel plus lifecycle calls into the registry. Window mutations are
// detached posts onto the control thread; only IsMaximized waits for its
// answer.
type PanelControl interface {
	Open(ctx context.Context, id string) error
	ClosePanel(id string) bool
	Minimize()
	Maximize()
	Restore()
	IsMaximized(ctx context.Context) (bool, error)
	ID() string
	Title() string
}

// Messenger is the messaging group: fire-and-forget sends into the router.
// Payloads arrive as strings from the content side and are parsed
// defensively; text that is not valid JSON crosses as a raw string.
type Messenger interface {
	Send(msgType, payload string)
	SendTo(target, msgType, payload string)
	Broadcast(msgType, payload string)
}

// Bridge implements both capability groups for one panel.
type Bridge struct {
	panel    *panel.Panel
	registry *panel.Registry
	router   *bus.Router
	ui       *uithread.Dispatcher
	logger   *slog.Logger
}

var (
	_ PanelControl = (*Bridge)(nil)
	_ Messenger    = (*Bridge)(nil)
)

// Params configures a Bridge.
type Params struct {
	Panel    *panel.Panel
	Registry *panel.Registry
	Router   *bus.Router
	UI       *uithread.Dispatcher
	Logger   *slog.Logger
}

// New builds the capability object for one panel. Pass a nil Logger for
// default.
func New(params Params) *Bridge {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		panel:    params.Panel,
		registry: params.Registry,
		router:   params.Router,
		ui:       params.UI,
		logger:   logger.With("component", "bridge", "panel_id", params.Panel.ID()),
	}
}

// ID returns the owning panel's address.
func (b *Bridge) ID() string { return b.panel.ID() }

// Title returns the owning panel's window title.
func (b *Bridge) Title() string { return b.panel.Title() }

// Open opens another panel by definition id. Idempotent: an already-open
// panel is foregrounded instead of recreated.
func (b *Bridge) Open(ctx context.Context, id string) error {
	_, err := b.registry.Open(ctx, id)
	return err
}

// ClosePanel closes a panel by id; an empty id closes the calling panel.
// Reports whether a close was initiated.
func (b *Bridge) ClosePanel(id string) bool {
	if id == "" {
		id = b.panel.ID()
	}
	return b.registry.Close(id)
}

// Minimize minimizes the owning panel's window. Detached: the caller never
// waits on the control thread, and a failure is logged there.
func (b *Bridge) Minimize() {
	b.ui.Post(b.panel.Window().Minimize)
}

// Maximize maximizes the owning panel's window. Detached.
func (b *Bridge) Maximize() {
	b.ui.Post(b.panel.Window().Maximize)
}

// Restore restores the owning panel's window. Detached.
func (b *Bridge) Restore() {
	b.ui.Post(b.panel.Window().Restore)
}

// IsMaximized reads the window's maximized flag on the control thread.
func (b *Bridge) IsMaximized(ctx context.Context) (bool, error) {
	var maximized bool
	err := b.ui.Invoke(ctx, func() error {
		var innerErr error
		maximized, innerErr = b.panel.Window().IsMaximized()
		return innerErr
	})
	return maximized, err
}

// Send routes a platform-only message from the owning panel: only platform
// subscriptions for the type see it, no panel does.
func (b *Bridge) Send(msgType, payload string) {
	b.route(msgType, "", payload)
}

// SendTo routes a message to a target: a concrete panel id, "self", or
// "broadcast".
func (b *Bridge) SendTo(target, msgType, payload string) {
	b.route(msgType, target, payload)
}

// Broadcast routes a message to every live panel, the sender included, and
// to platform wildcard observers.
func (b *Bridge) Broadcast(msgType, payload string) {
	b.route(msgType, message.TargetBroadcast, payload)
}

func (b *Bridge) route(msgType, target, payload string) {
	msg := message.New(msgType, message.ParsePayload(payload))
	msg.From = b.panel.ID()
	msg.To = target
	b.router.Route(msg)
}
