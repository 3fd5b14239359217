// ABOUTME: Host orchestrator wiring the control thread, router, correlator,
// ABOUTME: and panel registry from configuration, and owning their lifecycle.

package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/internal/bridge"
	"github.com/atriumhq/atrium/internal/bus"
	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/manifest"
	"github.com/atriumhq/atrium/internal/message"
	"github.com/atriumhq/atrium/internal/panel"
	"github.com/atriumhq/atrium/internal/uithread"
)

// shutdownTimeout bounds how long panels get to close on the way out.
const shutdownTimeout = 5 * time.Second

// Host orchestrates the atrium components: the control-thread dispatcher,
// the message router, the request correlator, and the panel registry.
type Host struct {
	config     *config.Config
	ui         *uithread.Dispatcher
	router     *bus.Router
	correlator *bus.Correlator
	registry   *panel.Registry
	logger     *slog.Logger

	// hostID identifies this host instance
	hostID string
}

// Params configures a Host.
type Params struct {
	Config  *config.Config
	Factory panel.Factory
	Logger  *slog.Logger
}

// New wires a host from configuration. Panel definitions from the config
// file and its manifest directory are registered before New returns.
func New(params Params) (*Host, error) {
	cfg := params.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if params.Factory == nil {
		return nil, errors.New("host requires a panel factory")
	}

	ui := uithread.New(logger, 0)
	router := bus.NewRouter(logger, cfg.Bus.QueueSize)
	correlator := bus.NewCorrelator(router, logger)
	registry := panel.NewRegistry(panel.RegistryParams{
		Router:         router,
		Factory:        params.Factory,
		UI:             ui,
		EndpointBuffer: cfg.Bus.EndpointBuffer,
		Logger:         logger,
	})

	h := &Host{
		config:     cfg,
		ui:         ui,
		router:     router,
		correlator: correlator,
		registry:   registry,
		logger:     logger.With("component", "host"),
		hostID:     generateHostID(),
	}

	if err := h.registerDefinitions(); err != nil {
		router.Close()
		return nil, err
	}

	return h, nil
}

// registerDefinitions seeds the registry from the config file's inline
// definitions and its manifest directory, in that order.
func (h *Host) registerDefinitions() error {
	for _, def := range h.config.Panels.Definitions {
		if err := h.registry.RegisterDefinition(def); err != nil {
			return fmt.Errorf("registering inline definition: %w", err)
		}
	}

	if dir := h.config.Panels.ManifestDir; dir != "" {
		defs, err := manifest.LoadDir(dir)
		if err != nil {
			return fmt.Errorf("loading panel manifests: %w", err)
		}
		for _, def := range defs {
			if err := h.registry.RegisterDefinition(def); err != nil {
				return fmt.Errorf("registering manifest definition: %w", err)
			}
		}
		if len(defs) > 0 {
			h.logger.Info("panel manifests loaded", "dir", dir, "definitions", len(defs))
		}
	}

	return nil
}

// Run serves the control thread on the calling goroutine until ctx is
// cancelled, then shuts everything down. Call it from the process's main
// goroutine: window work must stay on one OS thread.
func (h *Host) Run(ctx context.Context) error {
	h.logger.Info("starting host",
		"host_id", h.hostID,
		"definitions", len(h.registry.KnownDefinitions()))

	// The control thread outlives ctx: panels close through it during
	// shutdown, so only Shutdown itself stops the loop.
	uiCtx, stopUI := context.WithCancel(context.Background())
	defer stopUI()

	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownDone <- h.gracefulShutdown()
	}()

	if err := h.ui.Run(uiCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-shutdownDone
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the run context is already
// canceled.
func (h *Host) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Shutdown(ctx)
}

// Shutdown closes every panel while the control thread still runs, then
// stops routing and the control thread itself. A context without a deadline
// is bounded by shutdownTimeout so panels that never report closed cannot
// hang it.
func (h *Host) Shutdown(ctx context.Context) error {
	h.logger.Info("shutting down host")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	var errs []error
	if err := h.registry.CloseAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing panels: %w", err))
	}

	h.router.Close()
	h.ui.Stop()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// Registry exposes the panel registry.
func (h *Host) Registry() *panel.Registry { return h.registry }

// Router exposes the message router.
func (h *Host) Router() *bus.Router { return h.router }

// Correlator exposes the request/response correlator.
func (h *Host) Correlator() *bus.Correlator { return h.correlator }

// BridgeFor builds the capability object handed to a panel's content
// runtime.
func (h *Host) BridgeFor(p *panel.Panel) *bridge.Bridge {
	return bridge.New(bridge.Params{
		Panel:    p,
		Registry: h.registry,
		Router:   h.router,
		UI:       h.ui,
		Logger:   h.logger,
	})
}

// Open opens a panel by definition id.
func (h *Host) Open(ctx context.Context, id string) (*panel.Panel, error) {
	return h.registry.Open(ctx, id)
}

// SendMessage routes a platform-originated message to one panel.
func (h *Host) SendMessage(id, msgType string, payload message.Payload) bool {
	return h.registry.SendMessage(id, msgType, payload)
}

// Broadcast routes a platform-originated message to every live panel.
func (h *Host) Broadcast(msgType string, payload message.Payload) {
	h.registry.Broadcast(msgType, payload)
}

// Request sends a platform-scoped request and awaits its response. A zero
// timeout selects the configured default.
func (h *Host) Request(ctx context.Context, msgType string, payload message.Payload, timeout time.Duration) (message.Payload, error) {
	return h.correlator.Request(ctx, msgType, payload, h.resolveTimeout(timeout))
}

// RequestTo sends a request to one panel and awaits its response.
func (h *Host) RequestTo(ctx context.Context, target, msgType string, payload message.Payload, timeout time.Duration) (message.Payload, error) {
	return h.correlator.RequestTo(ctx, target, msgType, payload, h.resolveTimeout(timeout))
}

func (h *Host) resolveTimeout(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	if h.config.Bus.RequestTimeout > 0 {
		return h.config.Bus.RequestTimeout
	}
	return bus.DefaultRequestTimeout
}

// On registers a platform-scope handler; use bus.Wildcard to observe every
// platform-visible message.
func (h *Host) On(msgType string, fn bus.Handler) string {
	return h.router.On(msgType, fn)
}

// Off removes a platform-scope handler.
func (h *Host) Off(msgType, handlerID string) {
	h.router.Off(msgType, handlerID)
}

// generateHostID creates a unique identifier for this host instance.
func generateHostID() string {
	return "atrium-host-" + uuid.NewString()[:8]
}
