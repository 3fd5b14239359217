// ABOUTME: Tests for host wiring, run/shutdown, and panel round trips.
// ABOUTME: Uses simulated surfaces so no real windows are involved.

package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atriumhq/atrium/internal/bus"
	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/message"
	"github.com/atriumhq/atrium/internal/panel"
)

type simSurface struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *simSurface) Initialize(ctx context.Context) error { return nil }
func (s *simSurface) Navigate(locator string) error        { return nil }
func (s *simSurface) PostEvent(data []byte) error          { return nil }
func (s *simSurface) Closed() <-chan struct{}              { return s.closed }

type simWindow struct {
	surface *simSurface
}

func (w *simWindow) Show() error                { return nil }
func (w *simWindow) Minimize() error            { return nil }
func (w *simWindow) Maximize() error            { return nil }
func (w *simWindow) Restore() error             { return nil }
func (w *simWindow) IsMaximized() (bool, error) { return false, nil }

func (w *simWindow) Close() error {
	w.surface.closeOnce.Do(func() { close(w.surface.closed) })
	return nil
}

func testFactory() panel.Factory {
	return panel.FactoryFunc(func(def panel.Definition) (panel.Surface, panel.Window, error) {
		s := &simSurface{closed: make(chan struct{})}
		return s, &simWindow{surface: s}, nil
	})
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	manifestDir := t.TempDir()
	manifestContent := `
[[panel]]
id = "console"
content = "panels/console.html"
`
	if err := os.WriteFile(filepath.Join(manifestDir, "10-console.toml"), []byte(manifestContent), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	return &config.Config{
		Logging: config.LoggingConfig{Level: "debug", Format: "text"},
		Panels: config.PanelsConfig{
			ManifestDir: manifestDir,
			Definitions: []panel.Definition{
				{ID: "settings", Title: "Settings", Content: "panels/settings.html"},
			},
		},
	}
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHostNew(t *testing.T) {
	h, err := New(Params{Config: testConfig(t), Factory: testFactory(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer h.Shutdown(context.Background())

	known := h.Registry().KnownDefinitions()
	want := []string{"console", "settings"}
	if len(known) != len(want) {
		t.Fatalf("KnownDefinitions = %v, want %v", known, want)
	}
	for i := range want {
		if known[i] != want[i] {
			t.Errorf("KnownDefinitions[%d] = %q, want %q", i, known[i], want[i])
		}
	}

	if h.Router() == nil {
		t.Error("router should not be nil")
	}
	if h.Correlator() == nil {
		t.Error("correlator should not be nil")
	}
}

func TestHostNew_RequiresFactory(t *testing.T) {
	_, err := New(Params{Config: testConfig(t), Logger: testLogger()})
	if err == nil {
		t.Fatal("New() without a factory should fail")
	}
}

func TestHostNew_BadManifestDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("[[panel] nope"), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	cfg := &config.Config{Panels: config.PanelsConfig{ManifestDir: dir}}
	_, err := New(Params{Config: cfg, Factory: testFactory(), Logger: testLogger()})
	if err == nil {
		t.Fatal("New() with a broken manifest should fail")
	}
}

func TestHostRunAndShutdown(t *testing.T) {
	h, err := New(Params{Config: testConfig(t), Factory: testFactory(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Run host in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Run(ctx)
	}()

	// Give it time to start
	time.Sleep(100 * time.Millisecond)

	if _, err := h.Open(ctx, "settings"); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if h.Registry().Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Registry().Len())
	}

	// Shutdown via context cancel
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("host did not shutdown in time")
	}

	waitFor(t, func() bool { return h.Registry().Len() == 0 }, "panels closed on shutdown")
}

func TestHostShutdown_BoundedWhenPanelsCannotClose(t *testing.T) {
	h, err := New(Params{Config: testConfig(t), Factory: testFactory(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	// Open without running the control thread: the close request queues but
	// is never served, so the surface never reports closed.
	if _, err := h.Open(context.Background(), "settings"); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = h.Shutdown(ctx)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("Shutdown() with unclosable panels should report an error")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Shutdown() took %v, want return at the context deadline", elapsed)
	}
}

func TestHost_PanelAnswersRequest(t *testing.T) {
	h, err := New(Params{Config: testConfig(t), Factory: testFactory(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Run(ctx)
	}()
	defer func() {
		cancel()
		<-errCh
	}()

	settings, err := h.Open(ctx, "settings")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	settings.On("config.get.request", func(msg *message.Message) error {
		if _, _, err := bus.ParseRequest(msg); err != nil {
			return err
		}
		return bus.Respond(h.Router(), "settings", msg, message.StructuredValue(map[string]any{"theme": "dark"}))
	})

	payload, err := h.RequestTo(ctx, "settings", "config.get", nil, time.Second)
	if err != nil {
		t.Fatalf("RequestTo() failed: %v", err)
	}

	got, ok := message.PayloadValue(payload).(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want map", message.PayloadValue(payload))
	}
	if got["theme"] != "dark" {
		t.Errorf(`payload["theme"] = %v, want "dark"`, got["theme"])
	}
}

func TestHost_BridgeForOpenedPanel(t *testing.T) {
	h, err := New(Params{Config: testConfig(t), Factory: testFactory(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Run(ctx)
	}()
	defer func() {
		cancel()
		<-errCh
	}()

	p, err := h.Open(ctx, "console")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	b := h.BridgeFor(p)
	if b.ID() != "console" {
		t.Errorf("bridge ID = %q, want %q", b.ID(), "console")
	}
}

func TestHost_ResolveTimeout(t *testing.T) {
	h, err := New(Params{Config: testConfig(t), Factory: testFactory(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer h.Shutdown(context.Background())

	if got := h.resolveTimeout(time.Second); got != time.Second {
		t.Errorf("resolveTimeout(1s) = %v, want 1s", got)
	}
	if got := h.resolveTimeout(0); got != bus.DefaultRequestTimeout {
		t.Errorf("resolveTimeout(0) = %v, want default %v", got, bus.DefaultRequestTimeout)
	}

	h.config.Bus.RequestTimeout = 2 * time.Second
	if got := h.resolveTimeout(0); got != 2*time.Second {
		t.Errorf("resolveTimeout(0) with configured default = %v, want 2s", got)
	}
}

func TestGenerateHostID(t *testing.T) {
	a, b := generateHostID(), generateHostID()
	if !strings.HasPrefix(a, "atrium-host-") {
		t.Errorf("host id = %q, want atrium-host- prefix", a)
	}
	if a == b {
		t.Errorf("consecutive host ids collided: %q", a)
	}
}
