package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the fixed component category tag used by the catalog and the
// compatibility rules.
type Category string

const (
	CategoryCPU         Category = "CPU"
	CategoryMotherboard Category = "Motherboard"
	CategoryRAM         Category = "RAM"
	CategoryGPU         Category = "GPU"
	CategoryStorage     Category = "Storage"
	CategoryPSU         Category = "PSU"
	CategoryCase        Category = "Case"
	CategoryCooling     Category = "Cooling"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryCPU,
	CategoryMotherboard,
	CategoryRAM,
	CategoryGPU,
	CategoryStorage,
	CategoryPSU,
	CategoryCase,
	CategoryCooling,
}

// ValidCategories is the set of allowed category names.
var ValidCategories = map[Category]bool{
	CategoryCPU:         true,
	CategoryMotherboard: true,
	CategoryRAM:         true,
	CategoryGPU:         true,
	CategoryStorage:     true,
	CategoryPSU:         true,
	CategoryCase:        true,
	CategoryCooling:     true,
}

// CategoryInfo is the catalog's descriptive record for a category.
type CategoryInfo struct {
	Name           Category `json:"name"`
	DisplayName    string   `json:"displayName"`
	Description    string   `json:"description"`
	Icon           string   `json:"icon"`
	SortOrder      int      `json:"sortOrder"`
	ComponentCount int      `json:"componentCount"`
}

// Component is a single hardware part in the catalog. Specifications hold
// category-dependent attributes whose values are strings, numbers, or bools.
type Component struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Brand          string          `json:"brand"`
	Model          string          `json:"model"`
	Description    string          `json:"description"`
	Category       Category        `json:"category"`
	Price          decimal.Decimal `json:"price"`
	InStock        bool            `json:"inStock"`
	Specifications map[string]any  `json:"specifications"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// SelectionItem is one (componentId, quantity) pair submitted by a caller.
type SelectionItem struct {
	ComponentID string `json:"componentId"`
	Quantity    int    `json:"quantity"`
}

// BuildComponent is a selection row of a saved build joined with its
// catalog record.
type BuildComponent struct {
	ComponentID string     `json:"componentId"`
	Quantity    int        `json:"quantity"`
	Component   *Component `json:"component,omitempty"`
}

// Build is a named, priced list of components.
type Build struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	UseCase     string           `json:"useCase"`
	IsPublic    bool             `json:"isPublic"`
	TotalPrice  decimal.Decimal  `json:"totalPrice"`
	Components  []BuildComponent `json:"components"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ValidUseCases is the set of allowed build use case values.
var ValidUseCases = map[string]bool{
	"Gaming":      true,
	"Workstation": true,
	"Budget":      true,
	"Office":      true,
	"Server":      true,
	"HTPC":        true,
	"Other":       true,
}
