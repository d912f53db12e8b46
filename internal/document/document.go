// Package document assembles a live bus from a crosstalk.yml manifest:
// it loads each declared dataset, derives and validates its keys, and binds
// one handle per dataset into the configured groups.
package document

import (
	"fmt"
	"path/filepath"

	"github.com/JohnCoene/crosstalk/internal/config"
	"github.com/JohnCoene/crosstalk/internal/dataset"
	"github.com/JohnCoene/crosstalk/pkg/bus"
)

// Document is an assembled session: one bus plus the handles bound for
// each configured dataset, by dataset name.
type Document struct {
	Bus     *bus.Bus
	Handles map[string]*bus.Handle
}

// Build loads every dataset in the config and binds it to the bus. Dataset
// paths are resolved relative to baseDir. Key validation is eager: a broken
// dataset fails the whole build before any handle is observable.
func Build(cfg *config.Config, baseDir string) (*Document, error) {
	doc := &Document{
		Bus:     bus.New(),
		Handles: make(map[string]*bus.Handle),
	}

	for name, ds := range cfg.Datasets {
		table, err := dataset.Load(resolvePath(baseDir, ds.Path))
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}

		h, err := bus.NewHandle(doc.Bus, ds.Group, table, keySpec(ds.Key))
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
		doc.Handles[name] = h
	}

	return doc, nil
}

// Dispose releases every handle. Idempotent.
func (d *Document) Dispose() {
	for _, h := range d.Handles {
		h.Dispose()
	}
}

func keySpec(spec *config.KeySpec) bus.KeySpec {
	if spec == nil {
		return bus.DefaultKeys()
	}
	if spec.Column != "" {
		return bus.Column(spec.Column)
	}
	keys := make([]bus.Key, len(spec.Explicit))
	for i, k := range spec.Explicit {
		keys[i] = bus.Key(k)
	}
	return bus.Explicit(keys...)
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
