// Package detect implements contact detection for the relay under test: a
// per-run state machine that waits for a first plausible reading, then takes
// a short stabilization burst and accepts the contact only when the burst is
// statistically quiet. Confirmation is terminal for the run.
package detect

import (
	"time"

	"codeberg.org/mkrell/relayctl/internal/errors"
	"codeberg.org/mkrell/relayctl/internal/estimator"
	"codeberg.org/mkrell/relayctl/internal/logger"
	"gonum.org/v1/gonum/stat"
)

// Phase is the detection state machine position.
type Phase int

const (
	PhaseSearching Phase = iota
	PhaseStabilizing
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseSearching:
		return "searching"
	case PhaseStabilizing:
		return "stabilizing"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// BurstSampler supplies the extra readings taken during a stabilization
// burst. ReadCurrentMA lets the burst keep the overcurrent check live.
type BurstSampler interface {
	ReadDifferential() int16
	ReadCurrentMA() float64
}

// Params tunes the detector.
type Params struct {
	ContactMinOhm    float64
	BurstSamples     int
	MaxCVPercent     float64
	InterSampleDelay time.Duration
	CurrentCeilingMA float64
}

// Detector runs the Searching/Stabilizing/Confirmed machine. It is owned by
// the acquisition worker; only Phase and the shared State are visible
// outside it.
type Detector struct {
	p       Params
	state   *State
	est     *estimator.Estimator
	sampler BurstSampler

	// overcurrent is invoked when a burst reading breaches the ceiling, so
	// stabilization cannot mask a safety fault.
	overcurrent func(ma float64)

	phase Phase
}

func NewDetector(p Params, state *State, est *estimator.Estimator, sampler BurstSampler, overcurrent func(ma float64)) *Detector {
	return &Detector{
		p:           p,
		state:       state,
		est:         est,
		sampler:     sampler,
		overcurrent: overcurrent,
		phase:       PhaseSearching,
	}
}

// Phase returns the machine position after the last Step.
func (d *Detector) Phase() Phase {
	return d.phase
}

// Reset re-arms the machine for the next run.
func (d *Detector) Reset() {
	d.phase = PhaseSearching
}

// Step advances the machine with one acquisition-cycle reading. It returns
// true when this step confirmed the contact.
//
// A valid reading at or above the minimum-contact threshold starts a
// stabilization burst; the burst either confirms and freezes the shared
// state or returns the machine to searching.
func (d *Detector) Step(res estimator.Result, level int, now time.Time) bool {
	d.state.SetCurrent(res.Ohms, res.Valid)

	if d.phase == PhaseConfirmed {
		return false
	}

	if !res.Valid || res.Ohms < d.p.ContactMinOhm {
		d.phase = PhaseSearching
		return false
	}

	d.phase = PhaseStabilizing
	mean, cv, ok := d.stabilize()
	if !ok {
		d.phase = PhaseSearching
		return false
	}

	d.phase = PhaseConfirmed
	d.state.Confirm(now, mean, level)
	logger.Info().
		Float64("resistance_ohm", mean).
		Float64("cv_percent", cv).
		Int("level", level).
		Msg("Contact confirmed")

	return true
}

// stabilize takes the burst readings and applies the CV gate. Any invalid
// reading aborts immediately. The gate separates a genuine stable closure
// from transient contact noise.
func (d *Detector) stabilize() (mean, cv float64, ok bool) {
	readings := make([]float64, 0, d.p.BurstSamples)

	for i := 0; i < d.p.BurstSamples; i++ {
		time.Sleep(d.p.InterSampleDelay)

		if ma := d.sampler.ReadCurrentMA(); ma > d.p.CurrentCeilingMA {
			d.overcurrent(ma)
			return 0, 0, false
		}

		res := d.est.FromCode(d.sampler.ReadDifferential())
		if !res.Valid {
			logger.Debug().
				Str("error_code", string(errors.ErrInvalidReading)).
				Str("reason", res.Reason.String()).
				Int("sample", i).
				Msg("Stabilization aborted on invalid reading")
			return 0, 0, false
		}
		readings = append(readings, res.Ohms)
	}

	mean = stat.Mean(readings, nil)
	if mean <= 0 {
		return 0, 0, false
	}
	cv = stat.PopStdDev(readings, nil) / mean * 100

	if cv >= d.p.MaxCVPercent {
		logger.Debug().
			Float64("mean_ohm", mean).
			Float64("cv_percent", cv).
			Msg("Stabilization rejected as noise")
		return mean, cv, false
	}

	return mean, cv, true
}

// Stats exposes the burst statistics for tests and diagnostics.
func Stats(readings []float64) (mean, cvPercent float64) {
	mean = stat.Mean(readings, nil)
	if mean == 0 {
		return mean, 0
	}

	return mean, stat.PopStdDev(readings, nil) / mean * 100
}
