// ABOUTME: Scripted demo exercising panel lifecycle and messaging end to end.
// ABOUTME: Opens simulated panels, routes traffic both ways, then shuts down.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/host"
	"github.com/atriumhq/atrium/internal/message"
	"github.com/atriumhq/atrium/internal/panel"
)

// demoStepTimeout bounds each wait in the walkthrough.
const demoStepTimeout = 2 * time.Second

func runDemo(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg := config.Default()
	cfg.Panels.Definitions = []panel.Definition{
		{ID: "ticker", Title: "Market Ticker", Width: 420, Height: 640, Content: "app://panels/ticker"},
		{ID: "orders", Title: "Order Entry", Width: 520, Height: 400, Content: "app://panels/orders"},
	}

	logger := setupLogger(cfg.Logging)
	factory := newSimFactory(logger)

	h, err := host.New(host.Params{
		Config:  cfg,
		Factory: factory,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating host: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- scenario(runCtx, h, factory)
		cancel()
	}()

	runErr := h.Run(runCtx)
	if err := <-done; err != nil {
		return err
	}
	return runErr
}

func scenario(ctx context.Context, h *host.Host, factory *simFactory) error {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	cyan.Println("  Panel lifecycle")
	cyan.Println("  ---------------")

	ticker, err := h.Open(ctx, "ticker")
	if err != nil {
		return fmt.Errorf("opening ticker: %w", err)
	}
	factory.Connect(ticker.ID(), h.BridgeFor(ticker))
	green.Printf("  ✓ Opened panel: %s (%s)\n", ticker.ID(), ticker.Title())

	orders, err := h.Open(ctx, "orders")
	if err != nil {
		return fmt.Errorf("opening orders: %w", err)
	}
	factory.Connect(orders.ID(), h.BridgeFor(orders))
	green.Printf("  ✓ Opened panel: %s (%s)\n", orders.ID(), orders.Title())

	fmt.Println()
	cyan.Println("  Messaging")
	cyan.Println("  ---------")

	// A panel-side subscription sees broadcasts addressed to every panel.
	quotes := make(chan *message.Message, 1)
	ticker.On("quote.update", func(msg *message.Message) error {
		select {
		case quotes <- msg:
		default:
		}
		return nil
	})

	h.Broadcast("quote.update", message.StructuredValue(map[string]any{
		"symbol": "AAPL",
		"last":   189.30,
	}))

	select {
	case msg := <-quotes:
		green.Printf("  ✓ Broadcast delivered to ticker: %v\n", message.PayloadValue(msg.Payload))
	case <-time.After(demoStepTimeout):
		return fmt.Errorf("timed out waiting for broadcast delivery")
	case <-ctx.Done():
		return ctx.Err()
	}

	// A direct send reaches exactly one panel.
	if ok := h.SendMessage("orders", "order.prefill", message.StructuredValue(map[string]any{
		"symbol": "AAPL",
		"side":   "buy",
	})); !ok {
		return fmt.Errorf("sending to orders panel failed")
	}
	green.Println("  ✓ Sent order.prefill to orders")

	// Request/response: the simulated orders content echoes the request
	// back on the private response type.
	resp, err := h.RequestTo(ctx, "orders", "order.submit", message.StructuredValue(map[string]any{
		"symbol": "AAPL",
		"qty":    100,
	}), demoStepTimeout)
	if err != nil {
		return fmt.Errorf("order.submit request: %w", err)
	}
	green.Printf("  ✓ Round trip response: %v\n", message.PayloadValue(resp))

	// A payload that is not JSON crosses the bridge as a literal string.
	notes := make(chan any, 1)
	h.On("ticker.note", func(msg *message.Message) error {
		select {
		case notes <- message.PayloadValue(msg.Payload):
		default:
		}
		return nil
	})
	h.BridgeFor(ticker).Send("ticker.note", "{not json")

	select {
	case note := <-notes:
		green.Printf("  ✓ Raw payload arrived as %T: %q\n", note, note)
	case <-time.After(demoStepTimeout):
		return fmt.Errorf("timed out waiting for raw note")
	case <-ctx.Done():
		return ctx.Err()
	}

	fmt.Println()
	cyan.Println("  Teardown")
	cyan.Println("  --------")

	h.Registry().Close("ticker")
	h.Registry().Close("orders")

	deadline := time.Now().Add(demoStepTimeout)
	for h.Registry().Len() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for panels to close")
		}
		time.Sleep(10 * time.Millisecond)
	}
	green.Println("  ✓ All panels closed")

	fmt.Println()
	green.Println("  Demo complete!")
	fmt.Println()

	return nil
}
