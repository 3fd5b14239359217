// ABOUTME: Collaborator interfaces for the embedded content runtime and chrome.
// ABOUTME: The core consumes these four operations and never renders anything.

package panel

import "context"

// Surface is the embedded content runtime behind a panel. The core drives it
// through exactly these operations; rendering lives elsewhere.
type Surface interface {
	// Initialize brings the content runtime up. The panel reaches Ready only
	// after Initialize returns nil.
	Initialize(ctx context.Context) error

	// Navigate points the surface at a content locator.
	Navigate(locator string) error

	// PostEvent pushes a serialized envelope into the content runtime. It
	// must not block on the runtime's event loop.
	PostEvent(data []byte) error

	// Closed is signalled when the surface has shut down, whether the close
	// was requested or user-initiated.
	Closed() <-chan struct{}
}

// Window is a panel's chrome handle. Every call must be marshaled onto the
// control thread; the interface itself carries no threading concerns.
type Window interface {
	Show() error
	Minimize() error
	Maximize() error
	Restore() error
	IsMaximized() (bool, error)
	Close() error
}

// Factory builds the collaborator pair for a definition. Injected into the
// registry so tests and hosts choose their own surfaces.
type Factory interface {
	Build(def Definition) (Surface, Window, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(def Definition) (Surface, Window, error)

// Build implements Factory.
func (f FactoryFunc) Build(def Definition) (Surface, Window, error) {
	return f(def)
}
