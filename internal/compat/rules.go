package compat

import "fmt"

// Severity classifies a finding produced by a rule.
type Severity int

const (
	// SeverityError is a hard conflict; it makes the build incompatible.
	SeverityError Severity = iota + 1
	// SeverityWarning is a soft risk that leaves compatibility unchanged.
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return "unknown"
}

// Finding is a single message emitted by a rule.
type Finding struct {
	Severity Severity
	Message  string
}

// Result is the outcome of one rule. A rule that lacked the data it needs is
// reported as not Applicable, which is distinct from a rule that ran and
// found nothing wrong.
type Result struct {
	Applicable bool
	Detail     string
	Findings   []Finding
}

// Inapplicable returns the result of a rule that could not run.
func Inapplicable(reason string) Result {
	return Result{Detail: reason}
}

// Compatible reports whether the rule ran and found no hard conflict.
func (r Result) Compatible() bool {
	if !r.Applicable {
		return false
	}
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

func (r *Result) errorf(format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

// CheckSocket compares the CPU and motherboard socket identifiers. The match
// is exact and case-sensitive.
func CheckSocket(cpu, board *ResolvedComponent) Result {
	if cpu == nil || board == nil {
		return Inapplicable("CPU or motherboard not selected")
	}
	cpuSocket, ok1 := cpu.Specifications.String("socket")
	boardSocket, ok2 := board.Specifications.String("socket")
	if !ok1 || !ok2 {
		return Inapplicable("Socket information missing")
	}

	r := Result{Applicable: true}
	if cpuSocket == boardSocket {
		r.Detail = fmt.Sprintf("Compatible sockets (%s)", cpuSocket)
		return r
	}
	r.errorf("CPU socket (%s) is not compatible with motherboard socket (%s)", cpuSocket, boardSocket)
	r.Detail = "Incompatible sockets"
	return r
}

// CheckMemory compares RAM against the motherboard's memory support. A type
// mismatch is an error and ends the check; speed and capacity above the
// board's limits are warnings.
func CheckMemory(ram, board *ResolvedComponent) Result {
	if ram == nil || board == nil {
		return Inapplicable("RAM or motherboard not selected")
	}
	ramType, ok1 := ram.Specifications.String("type")
	boardType, ok2 := board.Specifications.String("memoryType")
	if !ok1 || !ok2 {
		return Inapplicable("Memory type information missing")
	}

	r := Result{Applicable: true}
	if ramType != boardType {
		r.errorf("RAM type (%s) is not compatible with motherboard memory type (%s)", ramType, boardType)
		r.Detail = "Memory type mismatch"
		return r
	}
	r.Detail = fmt.Sprintf("Compatible memory type (%s)", ramType)

	speed, ok1 := ram.Specifications.Positive("speed")
	maxSpeed, ok2 := board.Specifications.Positive("maxMemorySpeed")
	if ok1 && ok2 && speed.GreaterThan(maxSpeed) {
		r.warnf("RAM speed (%s MHz) exceeds motherboard maximum (%s MHz)", speed, maxSpeed)
	}

	capacity, ok1 := ram.Specifications.Positive("capacity")
	maxCapacity, ok2 := board.Specifications.Positive("maxMemory")
	if ok1 && ok2 && capacity.GreaterThan(maxCapacity.Floor()) {
		r.warnf("RAM capacity (%sGB) exceeds motherboard maximum (%sGB)", capacity, maxCapacity.Floor())
	}
	return r
}
