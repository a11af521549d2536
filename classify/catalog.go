package classify

import (
	"context"
	"sort"
	"strings"
)

// DefaultVariant is the variant every agent falls back to. Catalogs are
// validated to contain it at load time.
const DefaultVariant = "default"

// blankVariant names a placeholder catalog entry that is never selectable.
const blankVariant = "blank"

// VariantCatalog maps variant names to their instruction templates for one
// agent.
type VariantCatalog map[string]string

// CatalogLoader supplies each agent's variant catalog. Implementations load
// from configuration; the engine caches results until invalidated.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, agent string) (VariantCatalog, error)
}

// StaticLoader is a CatalogLoader over a fixed in-memory map, keyed by agent
// name. Useful for tests and embedded setups.
type StaticLoader map[string]VariantCatalog

// LoadCatalog implements CatalogLoader.
func (l StaticLoader) LoadCatalog(_ context.Context, agent string) (VariantCatalog, error) {
	return l[agent], nil
}

// Selectable returns the sorted variant names eligible for selection:
// entries named "blank" or holding only whitespace are excluded. An empty
// or missing catalog degrades to the synthetic single-variant set
// ["default"].
func (c VariantCatalog) Selectable() []string {
	var names []string
	for name, template := range c {
		if name == blankVariant || strings.TrimSpace(template) == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return []string{DefaultVariant}
	}
	sort.Strings(names)
	return names
}

// Template returns the instruction template for a variant, falling back to
// the default variant's template when the name is unknown.
func (c VariantCatalog) Template(variant string) string {
	if template, ok := c[variant]; ok && strings.TrimSpace(template) != "" {
		return template
	}
	return c[DefaultVariant]
}
