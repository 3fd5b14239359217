// Package panel owns addressable UI surfaces and their lifecycle.
//
// A Panel moves through Created, Initializing, Ready, Closing, and Closed;
// Closed is terminal and unreachable by id. The Registry maps ids to live
// panels and definitions to templates. Open is idempotent: a live panel is
// shown and returned, and concurrent opens of the same id during creation
// all receive the single in-flight instance because the registry inserts a
// placeholder entry before initialization starts.
//
// Panels never touch their window directly from arbitrary goroutines; all
// window mutation is posted onto the control thread. The content surface and
// window are collaborator interfaces supplied by a Factory, so the package
// contains no rendering.
package panel
