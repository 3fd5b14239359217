// ABOUTME: TOML panel manifests: [[panel]] tables declaring definitions.
// ABOUTME: Loads single files or a directory of *.toml, with env expansion.

package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/atriumhq/atrium/internal/panel"
)

// Manifest is one TOML file declaring panel definitions:
//
//	[[panel]]
//	id = "settings"
//	title = "Settings"
//	width = 420
//	height = 560
//	content = "panels/settings.html"
type Manifest struct {
	Panels []panel.Definition `toml:"panel"`
}

// Load reads one manifest file, expanding ${VAR} environment references.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var m Manifest
	if _, err := toml.Decode(expanded, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", filepath.Base(path), err)
	}

	for i, def := range m.Panels {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("manifest %s, panel %d: %w", filepath.Base(path), i, err)
		}
	}

	return &m, nil
}

// LoadDir loads every *.toml manifest in dir, in filename order, and returns
// the combined definitions. A missing directory yields no definitions.
// Duplicate ids across files resolve last-one-wins through the registry's
// upsert rule.
func LoadDir(dir string) ([]panel.Definition, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var defs []panel.Definition
	for _, name := range names {
		m, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, m.Panels...)
	}
	return defs, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
