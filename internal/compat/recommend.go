package compat

import "github.com/tphummel/pcbuild/internal/models"

const (
	RecommendStorage = "Add storage (SSD/HDD) to complete your build"
	RecommendCase    = "Select a PC case to house your components"
	RecommendPSU     = "Add a power supply unit (PSU) to power your system"
	RecommendCooler  = "Add a CPU cooler for proper thermal management"
)

// Recommend lists suggestions for categories a complete system usually has
// but the selection omits. Recommendations are informational only.
func Recommend(byCategory map[models.Category]*ResolvedComponent) []string {
	recs := []string{}
	if byCategory[models.CategoryStorage] == nil {
		recs = append(recs, RecommendStorage)
	}
	if byCategory[models.CategoryCase] == nil {
		recs = append(recs, RecommendCase)
	}
	if byCategory[models.CategoryPSU] == nil {
		recs = append(recs, RecommendPSU)
	}
	if byCategory[models.CategoryCPU] != nil && byCategory[models.CategoryCooling] == nil {
		recs = append(recs, RecommendCooler)
	}
	return recs
}
