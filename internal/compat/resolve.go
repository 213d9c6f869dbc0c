package compat

import "github.com/tphummel/pcbuild/internal/models"

// ResolvedComponent is a selected component whose category and specifications
// have already been looked up in the catalog.
type ResolvedComponent struct {
	ComponentID    string          `json:"componentId" yaml:"componentId"`
	Name           string          `json:"name,omitempty" yaml:"name"`
	Category       models.Category `json:"category" yaml:"category"`
	Specifications Spec            `json:"specifications" yaml:"specifications"`
	Quantity       int             `json:"quantity" yaml:"quantity"`
}

// Resolve keys components by category for the per-category rules. When a
// category appears more than once the last component in the list wins;
// components of unknown categories are left out. Power estimation does not
// use this map and still counts every component.
func Resolve(components []ResolvedComponent) map[models.Category]*ResolvedComponent {
	byCategory := make(map[models.Category]*ResolvedComponent, len(models.Categories))
	for i := range components {
		c := &components[i]
		if !models.ValidCategories[c.Category] {
			continue
		}
		byCategory[c.Category] = c
	}
	return byCategory
}
