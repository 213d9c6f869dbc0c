// Package catalog holds the starter component catalog shipped with the binary.
package catalog

import (
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tphummel/pcbuild/internal/models"
)

//go:embed seed.yaml
var seedYAML []byte

// seedNamespace derives stable component IDs from model names so a reseeded
// catalog keeps the IDs saved builds refer to.
var seedNamespace = uuid.MustParse("5b0f2f9e-7c1a-4f43-9d38-2f1f8e6a1c55")

type seedFile struct {
	Categories []seedCategory  `yaml:"categories"`
	Components []seedComponent `yaml:"components"`
}

type seedCategory struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"displayName"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	SortOrder   int    `yaml:"sortOrder"`
}

type seedComponent struct {
	Name           string         `yaml:"name"`
	Brand          string         `yaml:"brand"`
	Model          string         `yaml:"model"`
	Category       string         `yaml:"category"`
	Price          string         `yaml:"price"`
	Description    string         `yaml:"description"`
	InStock        *bool          `yaml:"inStock"`
	Specifications map[string]any `yaml:"specifications"`
}

// Seed is a parsed catalog ready to be written to the store.
type Seed struct {
	Categories []models.CategoryInfo
	Components []models.Component
}

// Default returns the embedded starter catalog.
func Default() (*Seed, error) {
	return Parse(seedYAML)
}

// Parse decodes a YAML catalog document. Every component must name a known
// category and carry a non-negative price.
func Parse(data []byte) (*Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seed := &Seed{}
	for _, c := range f.Categories {
		cat := models.Category(c.Name)
		if !models.ValidCategories[cat] {
			return nil, fmt.Errorf("category %q: unknown category", c.Name)
		}
		seed.Categories = append(seed.Categories, models.CategoryInfo{
			Name:        cat,
			DisplayName: c.DisplayName,
			Description: c.Description,
			Icon:        c.Icon,
			SortOrder:   c.SortOrder,
		})
	}

	for i, c := range f.Components {
		if c.Name == "" || c.Model == "" {
			return nil, fmt.Errorf("component %d: name and model are required", i)
		}
		cat := models.Category(c.Category)
		if !models.ValidCategories[cat] {
			return nil, fmt.Errorf("component %q: unknown category %q", c.Name, c.Category)
		}
		price, err := decimal.NewFromString(c.Price)
		if err != nil {
			return nil, fmt.Errorf("component %q: price %q: %w", c.Name, c.Price, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("component %q: negative price", c.Name)
		}
		inStock := true
		if c.InStock != nil {
			inStock = *c.InStock
		}
		specs := c.Specifications
		if specs == nil {
			specs = map[string]any{}
		}
		seed.Components = append(seed.Components, models.Component{
			ID:             ComponentID(c.Brand, c.Model),
			Name:           c.Name,
			Brand:          c.Brand,
			Model:          c.Model,
			Description:    c.Description,
			Category:       cat,
			Price:          price,
			InStock:        inStock,
			Specifications: specs,
		})
	}
	return seed, nil
}

// ComponentID returns the deterministic ID of a seeded component.
func ComponentID(brand, model string) string {
	return uuid.NewSHA1(seedNamespace, []byte(brand+"/"+model)).String()
}
