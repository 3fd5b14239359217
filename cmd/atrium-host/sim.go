// ABOUTME: Simulated content surfaces and windows for running the host headless.
// ABOUTME: Echoes request envelopes back through the bridge like a real panel would.

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atriumhq/atrium/internal/bridge"
	"github.com/atriumhq/atrium/internal/message"
	"github.com/atriumhq/atrium/internal/panel"
)

// simReplyDelay spaces out echoed responses so the round trip is visible in
// the logs.
const simReplyDelay = 50 * time.Millisecond

// simSurface stands in for an embedded content runtime. Events pushed into
// it are logged, and request envelopes are echoed back through the bridge
// so request/response round trips complete without a real embedder.
type simSurface struct {
	id     string
	logger *slog.Logger

	mu        sync.Mutex
	messenger bridge.Messenger

	closed    chan struct{}
	closeOnce sync.Once
}

func (s *simSurface) Initialize(_ context.Context) error {
	s.logger.Debug("surface initialized")
	return nil
}

func (s *simSurface) Navigate(locator string) error {
	s.logger.Debug("surface navigating", "content", locator)
	return nil
}

func (s *simSurface) PostEvent(data []byte) error {
	msg, err := message.Decode(data)
	if err != nil {
		s.logger.Warn("surface received undecodable event", "error", err)
		return nil
	}

	s.logger.Info("panel received event",
		"msg_type", msg.Type,
		"from", msg.From,
		"payload", message.PayloadValue(msg.Payload),
	)

	if strings.HasSuffix(msg.Type, ".request") {
		go s.echoReply(msg)
	}
	return nil
}

func (s *simSurface) Closed() <-chan struct{} {
	return s.closed
}

func (s *simSurface) reportClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// echoReply answers a request envelope the way panel content would: it pulls
// the correlation id out of the request body and sends the reply on the
// private response type the requester is listening on.
func (s *simSurface) echoReply(msg *message.Message) {
	s.mu.Lock()
	messenger := s.messenger
	s.mu.Unlock()
	if messenger == nil {
		s.logger.Debug("no bridge connected, dropping reply", "msg_type", msg.Type)
		return
	}

	body, ok := message.PayloadValue(msg.Payload).(map[string]any)
	if !ok {
		s.logger.Warn("request without a structured body", "msg_type", msg.Type)
		return
	}
	correlationID, ok := body["correlationId"].(string)
	if !ok || correlationID == "" {
		s.logger.Warn("request without a correlation id", "msg_type", msg.Type)
		return
	}

	reply, err := json.Marshal(map[string]any{
		"panel": s.id,
		"echo":  body["data"],
	})
	if err != nil {
		s.logger.Warn("marshaling echo reply", "error", err)
		return
	}

	time.Sleep(simReplyDelay)

	baseType := strings.TrimSuffix(msg.Type, ".request")
	messenger.Send(baseType+".response."+correlationID, string(reply))
}

// simWindow is the chrome half of the pair. State changes are logged rather
// than rendered; Close reports through the surface like a real window would.
type simWindow struct {
	surface *simSurface
	logger  *slog.Logger

	mu        sync.Mutex
	minimized bool
	maximized bool
}

func (w *simWindow) Show() error {
	w.logger.Debug("window shown")
	return nil
}

func (w *simWindow) Minimize() error {
	w.mu.Lock()
	w.minimized = true
	w.mu.Unlock()
	w.logger.Debug("window minimized")
	return nil
}

func (w *simWindow) Maximize() error {
	w.mu.Lock()
	w.maximized = true
	w.mu.Unlock()
	w.logger.Debug("window maximized")
	return nil
}

func (w *simWindow) Restore() error {
	w.mu.Lock()
	w.minimized = false
	w.maximized = false
	w.mu.Unlock()
	w.logger.Debug("window restored")
	return nil
}

func (w *simWindow) IsMaximized() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maximized, nil
}

func (w *simWindow) Close() error {
	w.logger.Debug("window closed")
	w.surface.reportClosed()
	return nil
}

// simFactory builds simulated surface/window pairs and remembers the
// surfaces so they can be connected to a bridge once the panel exists.
type simFactory struct {
	logger *slog.Logger

	mu       sync.Mutex
	surfaces map[string]*simSurface
}

func newSimFactory(logger *slog.Logger) *simFactory {
	return &simFactory{
		logger:   logger.With("component", "sim"),
		surfaces: make(map[string]*simSurface),
	}
}

// Build implements panel.Factory.
func (f *simFactory) Build(def panel.Definition) (panel.Surface, panel.Window, error) {
	logger := f.logger.With("panel_id", def.ID)
	s := &simSurface{
		id:     def.ID,
		logger: logger,
		closed: make(chan struct{}),
	}

	f.mu.Lock()
	f.surfaces[def.ID] = s
	f.mu.Unlock()

	return s, &simWindow{surface: s, logger: logger}, nil
}

// Connect hands the panel's bridge to its surface so echoed replies have a
// way back into the bus. Call it after the panel has been opened.
func (f *simFactory) Connect(panelID string, messenger bridge.Messenger) {
	f.mu.Lock()
	s := f.surfaces[panelID]
	f.mu.Unlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	s.messenger = messenger
	s.mu.Unlock()
}
