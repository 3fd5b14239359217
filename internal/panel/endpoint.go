// ABOUTME: Per-panel outbound pump pushing envelopes into the content surface.
// ABOUTME: Serializes and posts asynchronously so the router never blocks.

package panel

import (
	"log/slog"
	"sync"

	"github.com/atriumhq/atrium/internal/message"
)

// defaultEndpointBuffer bounds undelivered pushes per panel.
const defaultEndpointBuffer = 64

// Endpoint is a panel's outbound path into its content surface. One pump
// goroutine per panel encodes envelopes and posts them; enqueueing never
// blocks the caller.
type Endpoint struct {
	panelID string
	surface Surface
	logger  *slog.Logger

	queue     chan *message.Message
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewEndpoint creates an endpoint and starts its pump. bufferSize bounds the
// queue; zero or negative selects the default. Pass nil logger for default.
func NewEndpoint(panelID string, surface Surface, bufferSize int, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = defaultEndpointBuffer
	}

	e := &Endpoint{
		panelID: panelID,
		surface: surface,
		logger:  logger.With("component", "endpoint"),
		queue:   make(chan *message.Message, bufferSize),
		done:    make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Enqueue hands an envelope to the pump and returns immediately. A full
// queue drops the envelope with a warning; after Close everything is dropped.
func (e *Endpoint) Enqueue(msg *message.Message) {
	select {
	case <-e.done:
		e.logger.Debug("enqueue after close, dropping event",
			"panel_id", e.panelID,
			"type", msg.Type)
	default:
		select {
		case e.queue <- msg:
		default:
			e.logger.Warn("endpoint queue full, dropping event",
				"panel_id", e.panelID,
				"type", msg.Type)
		}
	}
}

func (e *Endpoint) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case msg := <-e.queue:
			data, err := message.Encode(msg)
			if err != nil {
				e.logger.Error("encode event for content surface failed",
					"panel_id", e.panelID,
					"type", msg.Type,
					"error", err)
				continue
			}
			if err := e.surface.PostEvent(data); err != nil {
				e.logger.Warn("post event to content surface failed",
					"panel_id", e.panelID,
					"type", msg.Type,
					"error", err)
			}
		}
	}
}

// Close stops the pump. Envelopes still queued are discarded.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
}
