// Package estimator converts raw differential bridge codes into contact
// resistance. The conversion is pure and never lets NaN or Inf escape: any
// reading that cannot be trusted comes back as a typed invalid Result.
package estimator

import "math"

// InvalidReason explains why a reading could not be converted.
type InvalidReason int

const (
	ReasonNone InvalidReason = iota
	// ReasonNearBalance means the bridge denominator was below epsilon, i.e.
	// the bridge is balanced or railed and the division is meaningless.
	ReasonNearBalance
	ReasonNonFinite
	ReasonNonPositive
	ReasonAboveCeiling
)

func (r InvalidReason) String() string {
	switch r {
	case ReasonNone:
		return "valid"
	case ReasonNearBalance:
		return "near_balance"
	case ReasonNonFinite:
		return "non_finite"
	case ReasonNonPositive:
		return "non_positive"
	case ReasonAboveCeiling:
		return "above_ceiling"
	default:
		return "unknown"
	}
}

// Result is the outcome of one conversion. Ohms is meaningful only when
// Valid is true.
type Result struct {
	Ohms   float64
	Valid  bool
	Reason InvalidReason
}

// Params holds the bridge constants and the validity ceiling.
type Params struct {
	R1Ohm        float64
	ExcitationMV float64
	MVPerLSB     float64
	CeilingOhm   float64
}

// denomEpsilonMV guards the bridge division against a balanced or saturated
// bridge.
const denomEpsilonMV = 0.5

// Estimator converts signed 16-bit differential codes to ohms.
type Estimator struct {
	p Params
}

func New(p Params) *Estimator {
	return &Estimator{p: p}
}

// CodeToMV converts a raw ADC code to millivolts using the configured scale.
func (e *Estimator) CodeToMV(code int16) float64 {
	return float64(code) * e.p.MVPerLSB
}

// FromCode converts a differential bridge code into a resistance.
//
// The bridge solves to R = R1 * (Vexc + 2*Vd) / (Vexc - 2*Vd). A denominator
// below epsilon, a non-finite or non-positive quotient, or a value above the
// configured ceiling all yield an invalid Result.
func (e *Estimator) FromCode(code int16) Result {
	vd := e.CodeToMV(code)
	denom := e.p.ExcitationMV - 2*vd

	if math.Abs(denom) < denomEpsilonMV {
		return Result{Reason: ReasonNearBalance}
	}

	r := e.p.R1Ohm * (e.p.ExcitationMV + 2*vd) / denom
	switch {
	case math.IsNaN(r) || math.IsInf(r, 0):
		return Result{Reason: ReasonNonFinite}
	case r <= 0:
		return Result{Reason: ReasonNonPositive}
	case r > e.p.CeilingOhm:
		return Result{Reason: ReasonAboveCeiling}
	}

	return Result{Ohms: r, Valid: true, Reason: ReasonNone}
}
