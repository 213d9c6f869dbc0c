// Package builds resolves component selections against the catalog, runs the
// compatibility engine over them, and manages saved builds.
package builds

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tphummel/pcbuild/internal/compat"
	"github.com/tphummel/pcbuild/internal/db"
	"github.com/tphummel/pcbuild/internal/models"
)

// Selection and build limits.
const (
	MaxComponents     = 50
	MaxQuantity       = 10
	MaxNameLength     = 100
	MaxDescriptionLen = 500
)

// Error kinds carried by ValidationError.
const (
	KindValidation        = "Validation Error"
	KindInvalidComponents = "Invalid Components"
)

// ValidationError reports a request that cannot be evaluated or saved as given.
type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Catalog looks up catalog components by ID.
type Catalog interface {
	ComponentsByIDs(ctx context.Context, ids []string) (map[string]*models.Component, error)
}

// Store persists builds.
type Store interface {
	CreateBuild(ctx context.Context, b *models.Build) error
	GetBuild(ctx context.Context, id string) (*models.Build, error)
	ListBuilds(ctx context.Context, f db.BuildFilter) ([]*models.Build, int, error)
	DeleteBuild(ctx context.Context, id string) error
}

// Service checks selections and manages saved builds.
type Service struct {
	Catalog Catalog
	Store   Store
	// Observe, when set, is called with every report the service produces.
	Observe func(*compat.Report)
	// Now defaults to time.Now.
	Now func() time.Time
}

// CreateRequest is the payload for saving a build.
type CreateRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	UseCase     string                 `json:"useCase"`
	IsPublic    bool                   `json:"isPublic"`
	Components  []models.SelectionItem `json:"components"`
}

// Check evaluates a selection of catalog components.
func (s *Service) Check(ctx context.Context, items []models.SelectionItem) (*compat.Report, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	resolved, _, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}
	return s.evaluate(resolved)
}

// Create validates req, prices the selection and saves it. The build is saved
// whether or not it is compatible; the report comes back alongside it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Build, *compat.Report, error) {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return nil, nil, invalid("name is required")
	case len([]rune(name)) > MaxNameLength:
		return nil, nil, invalid("name must be at most %d characters", MaxNameLength)
	case len([]rune(req.Description)) > MaxDescriptionLen:
		return nil, nil, invalid("description must be at most %d characters", MaxDescriptionLen)
	case req.UseCase != "" && !models.ValidUseCases[req.UseCase]:
		return nil, nil, invalid("invalid useCase %q", req.UseCase)
	}
	if err := validateItems(req.Components); err != nil {
		return nil, nil, err
	}

	resolved, found, err := s.resolve(ctx, req.Components)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.evaluate(resolved)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	b := &models.Build{
		ID:          uuid.New().String(),
		Name:        name,
		Description: req.Description,
		UseCase:     req.UseCase,
		IsPublic:    req.IsPublic,
		TotalPrice:  decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, item := range req.Components {
		c := found[item.ComponentID]
		b.TotalPrice = b.TotalPrice.Add(c.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		b.Components = append(b.Components, models.BuildComponent{
			ComponentID: item.ComponentID,
			Quantity:    item.Quantity,
			Component:   c,
		})
	}

	if err := s.Store.CreateBuild(ctx, b); err != nil {
		return nil, nil, fmt.Errorf("save build: %w", err)
	}
	return b, report, nil
}

// Get returns a saved build with a freshly computed report. A missing build
// yields sql.ErrNoRows.
func (s *Service) Get(ctx context.Context, id string) (*models.Build, *compat.Report, error) {
	b, err := s.Store.GetBuild(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	resolved := make([]compat.ResolvedComponent, 0, len(b.Components))
	for _, bc := range b.Components {
		if bc.Component == nil {
			continue
		}
		resolved = append(resolved, toResolved(bc.Component, bc.Quantity))
	}
	report, err := s.evaluate(resolved)
	if err != nil {
		return nil, nil, err
	}
	return b, report, nil
}

// List returns one page of saved builds and the total match count.
func (s *Service) List(ctx context.Context, f db.BuildFilter) ([]*models.Build, int, error) {
	return s.Store.ListBuilds(ctx, f)
}

// Delete removes a saved build.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Store.DeleteBuild(ctx, id)
}

func (s *Service) evaluate(resolved []compat.ResolvedComponent) (*compat.Report, error) {
	report, err := compat.Evaluate(resolved)
	if err != nil {
		return nil, err
	}
	if s.Observe != nil {
		s.Observe(report)
	}
	return report, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// resolve looks up every selected component, preserving selection order.
func (s *Service) resolve(ctx context.Context, items []models.SelectionItem) ([]compat.ResolvedComponent, map[string]*models.Component, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ComponentID
	}
	found, err := s.Catalog.ComponentsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("look up components: %w", err)
	}

	var missing []string
	seen := map[string]bool{}
	for _, id := range ids {
		if found[id] == nil && !seen[id] {
			seen[id] = true
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, nil, &ValidationError{
			Kind:    KindInvalidComponents,
			Message: "One or more components not found: " + strings.Join(missing, ", "),
		}
	}

	resolved := make([]compat.ResolvedComponent, len(items))
	for i, item := range items {
		resolved[i] = toResolved(found[item.ComponentID], item.Quantity)
	}
	return resolved, found, nil
}

func toResolved(c *models.Component, qty int) compat.ResolvedComponent {
	return compat.ResolvedComponent{
		ComponentID:    c.ID,
		Name:           c.Name,
		Category:       c.Category,
		Specifications: compat.Spec(c.Specifications),
		Quantity:       qty,
	}
}

func validateItems(items []models.SelectionItem) error {
	if len(items) == 0 {
		return invalid("at least one component is required")
	}
	if len(items) > MaxComponents {
		return invalid("at most %d components are allowed", MaxComponents)
	}
	for i, item := range items {
		if strings.TrimSpace(item.ComponentID) == "" {
			return invalid("components[%d]: componentId is required", i)
		}
		if item.Quantity < 1 || item.Quantity > MaxQuantity {
			return invalid("components[%d]: quantity must be between 1 and %d", i, MaxQuantity)
		}
	}
	return nil
}
