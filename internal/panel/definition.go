// ABOUTME: Panel definitions: the templates panels are constructed from.
// ABOUTME: Carries identity, chrome geometry, style flags, and content locator.

package panel

import "fmt"

const (
	defaultWidth  = 800
	defaultHeight = 600
)

// Definition is the template a panel is constructed from. Content is an
// opaque locator handed to the content surface on creation.
type Definition struct {
	ID          string `yaml:"id" toml:"id"`
	Title       string `yaml:"title" toml:"title"`
	Width       int    `yaml:"width" toml:"width"`
	Height      int    `yaml:"height" toml:"height"`
	Frameless   bool   `yaml:"frameless" toml:"frameless"`
	Resizable   bool   `yaml:"resizable" toml:"resizable"`
	CanMaximize bool   `yaml:"can_maximize" toml:"can_maximize"`
	CanMinimize bool   `yaml:"can_minimize" toml:"can_minimize"`
	Content     string `yaml:"content" toml:"content"`
}

// Validate checks a definition before registration.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("definition missing id")
	}
	if d.Width < 0 || d.Height < 0 {
		return fmt.Errorf("definition %q has negative dimensions", d.ID)
	}
	return nil
}

// withDefaults fills unset fields so downstream code never sees zeros.
func (d Definition) withDefaults() Definition {
	if d.Width == 0 {
		d.Width = defaultWidth
	}
	if d.Height == 0 {
		d.Height = defaultHeight
	}
	if d.Title == "" {
		d.Title = d.ID
	}
	return d
}

// Dimensions is a panel's chrome geometry.
type Dimensions struct {
	Width  int
	Height int
}

// Style carries a panel's window style flags.
type Style struct {
	Frameless   bool
	Resizable   bool
	CanMaximize bool
	CanMinimize bool
}
