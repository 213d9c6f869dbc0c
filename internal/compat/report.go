// Package compat evaluates a set of selected PC components for compatibility.
//
// Evaluate is pure: it performs no I/O, keeps no state between calls, and is
// safe to call from any number of goroutines. Incompatible input is a normal
// outcome reported through Report.Errors, never through the returned error.
package compat

import (
	"errors"
	"fmt"
	"time"

	"github.com/tphummel/pcbuild/internal/models"
)

// ErrInvalidInput is returned for selections that cannot be evaluated at all.
var ErrInvalidInput = errors.New("invalid input")

// Report is the compatibility verdict for one selection. IsCompatible is true
// exactly when Errors is empty.
type Report struct {
	IsCompatible       bool      `json:"isCompatible"`
	Errors             []string  `json:"errors"`
	Warnings           []string  `json:"warnings"`
	Recommendations    []string  `json:"recommendations"`
	ComponentCount     int       `json:"componentCount"`
	CheckedAt          time.Time `json:"checkedAt"`
	TotalPowerDraw     *float64  `json:"totalPowerDraw,omitempty"`
	RecommendedWattage *int64    `json:"recommendedWattage,omitempty"`
}

func (r *Report) add(res Result) {
	for _, f := range res.Findings {
		switch f.Severity {
		case SeverityError:
			r.Errors = append(r.Errors, f.Message)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, f.Message)
		}
	}
}

// Evaluate runs the socket, memory, power and recommendation rules, in that
// order, over components.
func Evaluate(components []ResolvedComponent) (*Report, error) {
	return evaluate(components, time.Now().UTC())
}

func evaluate(components []ResolvedComponent, now time.Time) (*Report, error) {
	if err := validate(components); err != nil {
		return nil, err
	}

	byCategory := Resolve(components)
	cpu := byCategory[models.CategoryCPU]
	board := byCategory[models.CategoryMotherboard]

	report := &Report{
		Errors:         []string{},
		Warnings:       []string{},
		ComponentCount: len(components),
		CheckedAt:      now,
	}

	report.add(CheckSocket(cpu, board))
	report.add(CheckMemory(byCategory[models.CategoryRAM], board))

	power := CheckPower(components, byCategory[models.CategoryPSU])
	report.add(power.Result)
	if power.Applicable {
		total := power.TotalDraw.InexactFloat64()
		recommended := power.RecommendedWattage
		report.TotalPowerDraw = &total
		report.RecommendedWattage = &recommended
	}

	report.Recommendations = Recommend(byCategory)
	report.IsCompatible = len(report.Errors) == 0
	return report, nil
}

func validate(components []ResolvedComponent) error {
	for i, c := range components {
		if c.Category == "" {
			return fmt.Errorf("%w: component %d (%s) has no category", ErrInvalidInput, i, c.ComponentID)
		}
		if c.Quantity < 1 {
			return fmt.Errorf("%w: component %d (%s) has quantity %d", ErrInvalidInput, i, c.ComponentID, c.Quantity)
		}
	}
	return nil
}
