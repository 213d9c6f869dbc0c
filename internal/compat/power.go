package compat

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tphummel/pcbuild/internal/models"
)

// Default per-unit draw in watts when a component does not state its own.
var (
	defaultCPUDraw     = decimal.NewFromInt(65)
	defaultGPUDraw     = decimal.NewFromInt(150)
	motherboardDraw    = decimal.NewFromInt(50)
	ramModuleDraw      = decimal.NewFromInt(10)
	ssdDraw            = decimal.NewFromInt(5)
	hddDraw            = decimal.NewFromInt(10)
	otherComponentDraw = decimal.NewFromInt(10)

	// systemOverhead covers fans, USB devices and other peripherals.
	systemOverhead = decimal.NewFromInt(50)

	gpuPSUFactor  = decimal.RequireFromString("0.7")
	headroomRatio = decimal.RequireFromString("1.2")
)

// PowerResult is the outcome of the power supply rule along with the
// estimate it was judged against.
type PowerResult struct {
	Result
	TotalDraw          decimal.Decimal
	RecommendedWattage int64
}

// EstimateDraw returns the estimated draw in watts of one selection entry,
// counting its quantity.
func EstimateDraw(c ResolvedComponent) decimal.Decimal {
	qty := c.Quantity
	if qty < 1 {
		qty = 1
	}
	return unitDraw(c).Mul(decimal.NewFromInt(int64(qty)))
}

func unitDraw(c ResolvedComponent) decimal.Decimal {
	spec := c.Specifications
	switch c.Category {
	case models.CategoryCPU:
		if tdp, ok := spec.Positive("tdp"); ok {
			return tdp
		}
		return defaultCPUDraw
	case models.CategoryGPU:
		if w, ok := spec.Positive("powerConsumption"); ok {
			return w
		}
		if rec, ok := spec.Positive("recommendedPSU"); ok {
			return rec.Mul(gpuPSUFactor)
		}
		return defaultGPUDraw
	case models.CategoryMotherboard:
		return motherboardDraw
	case models.CategoryRAM:
		return ramModuleDraw
	case models.CategoryStorage:
		if t, ok := spec.String("type"); ok && strings.Contains(t, "SSD") {
			return ssdDraw
		}
		return hddDraw
	default:
		return otherComponentDraw
	}
}

// TotalDraw sums the estimated draw of every component, duplicates of a
// category included, plus the fixed system overhead.
func TotalDraw(components []ResolvedComponent) decimal.Decimal {
	total := systemOverhead
	for _, c := range components {
		total = total.Add(EstimateDraw(c))
	}
	return total
}

// RecommendedWattage is the draw plus 20% headroom, rounded up to a whole watt.
func RecommendedWattage(totalDraw decimal.Decimal) int64 {
	return totalDraw.Mul(headroomRatio).Ceil().IntPart()
}

// CheckPower compares the PSU rating against the estimated system draw.
func CheckPower(components []ResolvedComponent, psu *ResolvedComponent) PowerResult {
	if psu == nil {
		return PowerResult{Result: Inapplicable("PSU not selected")}
	}
	wattage, ok := psu.Specifications.Positive("wattage")
	if !ok {
		return PowerResult{Result: Inapplicable("PSU wattage information missing")}
	}

	total := TotalDraw(components)
	recommended := RecommendedWattage(total)
	r := PowerResult{
		Result:             Result{Applicable: true},
		TotalDraw:          total,
		RecommendedWattage: recommended,
	}

	switch {
	case wattage.LessThan(total):
		r.errorf("PSU wattage (%sW) insufficient for estimated power draw (%sW)", wattage, total)
		r.Detail = "Insufficient power supply"
	case wattage.LessThan(decimal.NewFromInt(recommended)):
		r.warnf("PSU wattage (%sW) below recommended (%dW for 20%% headroom)", wattage, recommended)
		r.Detail = "Power supply below recommended headroom"
	default:
		r.Detail = "Adequate power supply"
	}
	return r
}
