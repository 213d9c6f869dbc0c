package compat_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/tphummel/pcbuild/internal/compat"
	"github.com/tphummel/pcbuild/internal/models"
)

func mustEvaluate(t *testing.T, components []compat.ResolvedComponent) *compat.Report {
	t.Helper()
	r, err := compat.Evaluate(components)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if r.IsCompatible != (len(r.Errors) == 0) {
		t.Fatalf("IsCompatible %v disagrees with %d errors", r.IsCompatible, len(r.Errors))
	}
	return r
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// fullBuild is a compatible AM5 system with every category present.
func fullBuild() []compat.ResolvedComponent {
	return []compat.ResolvedComponent{
		part(models.CategoryCPU, compat.Spec{"socket": "AM5", "tdp": "120W"}),
		part(models.CategoryMotherboard, compat.Spec{"socket": "AM5", "memoryType": "DDR5", "maxMemory": "128GB"}),
		part(models.CategoryRAM, compat.Spec{"type": "DDR5", "speed": 6000, "capacity": 32}),
		part(models.CategoryGPU, compat.Spec{"recommendedPSU": 750}),
		part(models.CategoryStorage, compat.Spec{"type": "NVMe SSD"}),
		part(models.CategoryPSU, compat.Spec{"wattage": 1000}),
		part(models.CategoryCase, compat.Spec{"formFactor": "Mid Tower"}),
		part(models.CategoryCooling, compat.Spec{"type": "Air Cooler"}),
	}
}

func TestEvaluate_FullCompatibleBuild(t *testing.T) {
	r := mustEvaluate(t, fullBuild())

	if !r.IsCompatible {
		t.Errorf("expected compatible, errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("warnings: got %v, want none", r.Warnings)
	}
	if len(r.Recommendations) != 0 {
		t.Errorf("recommendations: got %v, want none", r.Recommendations)
	}
	if r.ComponentCount != 8 {
		t.Errorf("ComponentCount: got %d, want 8", r.ComponentCount)
	}
	if r.CheckedAt.IsZero() {
		t.Error("CheckedAt should be set")
	}
	// 120 + 50 + 10 + 525 + 5 + 10 + 10 + 10 + 50
	if r.TotalPowerDraw == nil || *r.TotalPowerDraw != 790 {
		t.Errorf("TotalPowerDraw: got %v, want 790", r.TotalPowerDraw)
	}
	if r.RecommendedWattage == nil || *r.RecommendedWattage != 948 {
		t.Errorf("RecommendedWattage: got %v, want 948", r.RecommendedWattage)
	}
}

func TestEvaluate_MatchingSockets(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{
		part(models.CategoryCPU, compat.Spec{"socket": "LGA1700"}),
		part(models.CategoryMotherboard, compat.Spec{"socket": "LGA1700"}),
	})
	if containsSubstring(r.Errors, "socket") {
		t.Errorf("unexpected socket error: %v", r.Errors)
	}
	if !r.IsCompatible {
		t.Errorf("expected compatible, got errors %v", r.Errors)
	}
}

func TestEvaluate_SocketMismatch(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{
		part(models.CategoryCPU, compat.Spec{"socket": "AM5"}),
		part(models.CategoryMotherboard, compat.Spec{"socket": "LGA1700"}),
	})
	want := []string{"CPU socket (AM5) is not compatible with motherboard socket (LGA1700)"}
	if !reflect.DeepEqual(r.Errors, want) {
		t.Errorf("errors: got %v, want %v", r.Errors, want)
	}
	if r.IsCompatible {
		t.Error("expected incompatible")
	}
}

func TestEvaluate_MemoryTypeMismatch(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{
		part(models.CategoryRAM, compat.Spec{"type": "DDR5", "speed": 8000}),
		part(models.CategoryMotherboard, compat.Spec{"memoryType": "DDR4", "maxMemorySpeed": 3200}),
	})
	if len(r.Errors) != 1 {
		t.Fatalf("errors: got %v, want exactly one", r.Errors)
	}
	if !strings.Contains(r.Errors[0], "DDR5") || !strings.Contains(r.Errors[0], "DDR4") {
		t.Errorf("error should mention both types: %q", r.Errors[0])
	}
	if len(r.Warnings) != 0 {
		t.Errorf("speed warning must be skipped after a type mismatch: %v", r.Warnings)
	}
	if r.IsCompatible {
		t.Error("expected incompatible")
	}
}

func TestEvaluate_InsufficientPSU(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{
		part(models.CategoryCPU, compat.Spec{"tdp": 125}),
		part(models.CategoryGPU, compat.Spec{"recommendedPSU": 700}),
		part(models.CategoryMotherboard, compat.Spec{}),
		part(models.CategoryRAM, compat.Spec{}),
		part(models.CategoryPSU, compat.Spec{"wattage": 550}),
	})

	// 125 + 490 + 50 + 10 + 10 (the PSU itself) + 50 overhead
	if r.TotalPowerDraw == nil || *r.TotalPowerDraw != 735 {
		t.Fatalf("TotalPowerDraw: got %v, want 735", r.TotalPowerDraw)
	}
	if r.RecommendedWattage == nil || *r.RecommendedWattage != 882 {
		t.Errorf("RecommendedWattage: got %v, want 882", r.RecommendedWattage)
	}
	want := "PSU wattage (550W) insufficient for estimated power draw (735W)"
	if !reflect.DeepEqual(r.Errors, []string{want}) {
		t.Errorf("errors: got %v, want [%q]", r.Errors, want)
	}
	if r.IsCompatible {
		t.Error("expected incompatible")
	}
}

func TestEvaluate_EmptySelection(t *testing.T) {
	r := mustEvaluate(t, nil)

	if !r.IsCompatible {
		t.Error("empty selection should be compatible")
	}
	if len(r.Errors) != 0 || len(r.Warnings) != 0 {
		t.Errorf("errors/warnings: got %v / %v, want none", r.Errors, r.Warnings)
	}
	if r.ComponentCount != 0 {
		t.Errorf("ComponentCount: got %d, want 0", r.ComponentCount)
	}
	want := []string{compat.RecommendStorage, compat.RecommendCase, compat.RecommendPSU}
	if !reflect.DeepEqual(r.Recommendations, want) {
		t.Errorf("recommendations: got %v, want %v", r.Recommendations, want)
	}
	if r.TotalPowerDraw != nil || r.RecommendedWattage != nil {
		t.Error("power figures should be absent without a PSU")
	}
}

func TestEvaluate_CoolerRecommendedOnlyWithCPU(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{part(models.CategoryCPU, compat.Spec{})})
	if !containsSubstring(r.Recommendations, "CPU cooler") {
		t.Errorf("expected cooler recommendation, got %v", r.Recommendations)
	}

	r = mustEvaluate(t, []compat.ResolvedComponent{part(models.CategoryGPU, compat.Spec{})})
	if containsSubstring(r.Recommendations, "CPU cooler") {
		t.Errorf("cooler recommended without a CPU: %v", r.Recommendations)
	}
}

func TestEvaluate_RecommendationsNeverAffectCompatibility(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{part(models.CategoryRAM, compat.Spec{"type": "DDR4"})})
	if len(r.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
	if !r.IsCompatible {
		t.Error("recommendations must not make a build incompatible")
	}
}

func TestEvaluate_WarningsOnlyStaysCompatible(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{
		part(models.CategoryRAM, compat.Spec{"type": "DDR5", "speed": 7200}),
		part(models.CategoryMotherboard, compat.Spec{"memoryType": "DDR5", "maxMemorySpeed": 6400}),
	})
	if len(r.Warnings) != 1 {
		t.Fatalf("warnings: got %v, want one", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0], "7200") || !strings.Contains(r.Warnings[0], "6400") {
		t.Errorf("warning should mention both speeds: %q", r.Warnings[0])
	}
	if !r.IsCompatible {
		t.Error("a speed warning alone must not make the build incompatible")
	}
}

func TestEvaluate_FixedRuleOrder(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{
		part(models.CategoryPSU, compat.Spec{"wattage": 100}),
		part(models.CategoryRAM, compat.Spec{"type": "DDR5"}),
		part(models.CategoryMotherboard, compat.Spec{"socket": "AM4", "memoryType": "DDR4"}),
		part(models.CategoryCPU, compat.Spec{"socket": "AM5"}),
	})
	if len(r.Errors) != 3 {
		t.Fatalf("errors: got %v, want 3", r.Errors)
	}
	for i, prefix := range []string{"CPU socket", "RAM type", "PSU wattage"} {
		if !strings.HasPrefix(r.Errors[i], prefix) {
			t.Errorf("errors[%d]: got %q, want prefix %q", i, r.Errors[i], prefix)
		}
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	components := fullBuild()
	components[5].Specifications["wattage"] = 500

	a := mustEvaluate(t, components)
	b := mustEvaluate(t, components)
	b.CheckedAt = a.CheckedAt
	if !reflect.DeepEqual(a, b) {
		t.Errorf("reports differ:\n%+v\n%+v", a, b)
	}
}

func TestEvaluate_OrderIndependent(t *testing.T) {
	components := []compat.ResolvedComponent{
		part(models.CategoryCPU, compat.Spec{"socket": "AM5", "tdp": 170}),
		part(models.CategoryMotherboard, compat.Spec{"socket": "LGA1700", "memoryType": "DDR5", "maxMemorySpeed": 5600}),
		part(models.CategoryRAM, compat.Spec{"type": "DDR5", "speed": 6000}),
		part(models.CategoryPSU, compat.Spec{"wattage": 300}),
	}
	reversed := make([]compat.ResolvedComponent, len(components))
	for i, c := range components {
		reversed[len(components)-1-i] = c
	}

	a := mustEvaluate(t, components)
	b := mustEvaluate(t, reversed)
	if !reflect.DeepEqual(a.Errors, b.Errors) {
		t.Errorf("errors differ: %v vs %v", a.Errors, b.Errors)
	}
	if !reflect.DeepEqual(a.Warnings, b.Warnings) {
		t.Errorf("warnings differ: %v vs %v", a.Warnings, b.Warnings)
	}
	if !reflect.DeepEqual(a.Recommendations, b.Recommendations) {
		t.Errorf("recommendations differ: %v vs %v", a.Recommendations, b.Recommendations)
	}
}

// A second component of the same category replaces the first for the
// per-category rules, while power estimation still counts both.
func TestEvaluate_DuplicateCategoryLastWins(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{
		part(models.CategoryCPU, compat.Spec{"socket": "AM5", "tdp": 100}),
		part(models.CategoryCPU, compat.Spec{"socket": "LGA1700", "tdp": 100}),
		part(models.CategoryMotherboard, compat.Spec{"socket": "AM5"}),
		part(models.CategoryPSU, compat.Spec{"wattage": 1000}),
	})
	want := "CPU socket (LGA1700) is not compatible with motherboard socket (AM5)"
	if !reflect.DeepEqual(r.Errors, []string{want}) {
		t.Errorf("errors: got %v, want [%q]", r.Errors, want)
	}
	// 100 + 100 + 50 + 10 + 50
	if r.TotalPowerDraw == nil || *r.TotalPowerDraw != 310 {
		t.Errorf("TotalPowerDraw: got %v, want 310", r.TotalPowerDraw)
	}
	if r.ComponentCount != 4 {
		t.Errorf("ComponentCount: got %d, want 4", r.ComponentCount)
	}
}

func TestEvaluate_UnknownSpecKeysIgnored(t *testing.T) {
	r := mustEvaluate(t, []compat.ResolvedComponent{
		part(models.CategoryCPU, compat.Spec{"socket": "AM5", "cores": 16, "boostClock": "5.7 GHz", "rgb": true}),
		part(models.CategoryMotherboard, compat.Spec{"socket": "AM5", "wifi": true}),
	})
	if !r.IsCompatible {
		t.Errorf("unexpected errors: %v", r.Errors)
	}
}

func TestEvaluate_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		c    compat.ResolvedComponent
	}{
		{"zero quantity", compat.ResolvedComponent{ComponentID: "x", Category: models.CategoryCPU, Quantity: 0}},
		{"negative quantity", compat.ResolvedComponent{ComponentID: "x", Category: models.CategoryCPU, Quantity: -1}},
		{"missing category", compat.ResolvedComponent{ComponentID: "x", Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := compat.Evaluate([]compat.ResolvedComponent{tt.c})
			if !errors.Is(err, compat.ErrInvalidInput) {
				t.Errorf("err: got %v, want ErrInvalidInput", err)
			}
			if r != nil {
				t.Errorf("report should be nil on invalid input, got %+v", r)
			}
		})
	}
}

func TestReport_JSONShape(t *testing.T) {
	r := mustEvaluate(t, nil)
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"isCompatible", "errors", "warnings", "recommendations", "componentCount", "checkedAt"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, b)
		}
	}
	if _, ok := m["totalPowerDraw"]; ok {
		t.Errorf("totalPowerDraw should be omitted without a PSU: %s", b)
	}
	if m["errors"] == nil || m["warnings"] == nil {
		t.Errorf("errors and warnings must serialize as arrays, not null: %s", b)
	}
}

func TestEvaluate_ConcurrentCalls(t *testing.T) {
	components := fullBuild()
	want := mustEvaluate(t, components)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := compat.Evaluate(components)
			if err != nil {
				t.Errorf("Evaluate: %v", err)
				return
			}
			if !reflect.DeepEqual(r.Errors, want.Errors) || r.IsCompatible != want.IsCompatible {
				t.Errorf("concurrent result differs: %+v", r)
			}
		}()
	}
	wg.Wait()
}
