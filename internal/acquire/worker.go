// Package acquire runs the fast sampling loop: read the sensors, enforce
// the overcurrent ceiling, advance contact detection, and hand the sample to
// the ring buffer without ever blocking on the slower persistence side.
package acquire

import (
	"sync/atomic"
	"time"

	"codeberg.org/mkrell/relayctl/internal/buffer"
	"codeberg.org/mkrell/relayctl/internal/detect"
	"codeberg.org/mkrell/relayctl/internal/errors"
	"codeberg.org/mkrell/relayctl/internal/estimator"
	"codeberg.org/mkrell/relayctl/internal/hal"
	"codeberg.org/mkrell/relayctl/internal/logger"
	"codeberg.org/mkrell/relayctl/internal/run"
)

// Params tunes the acquisition loop.
type Params struct {
	Interval         time.Duration
	CurrentCeilingMA float64
}

// Worker is the acquisition context. It owns the contact detector and stops
// on cooperative stop request, on contact confirmation, or when the safety
// cutoff fires.
type Worker struct {
	p        Params
	current  hal.CurrentSensor
	adc      hal.BridgeADC
	est      *estimator.Estimator
	detector *detect.Detector
	ring     *buffer.Ring
	flags    *run.Flags
	level    *run.Level

	acquired atomic.Int64
	done     chan struct{}
}

// burstSampler adapts the rig to the detector's stabilization interface.
type burstSampler struct {
	current hal.CurrentSensor
	adc     hal.BridgeADC
}

func (b burstSampler) ReadDifferential() int16 { return b.adc.ReadDifferential() }
func (b burstSampler) ReadCurrentMA() float64  { return b.current.ReadCurrentMA() }

func NewWorker(p Params, dp detect.Params, rig hal.Rig, est *estimator.Estimator,
	state *detect.State, ring *buffer.Ring, flags *run.Flags, level *run.Level,
) *Worker {
	w := &Worker{
		p:       p,
		current: rig.Current,
		adc:     rig.ADC,
		est:     est,
		ring:    ring,
		flags:   flags,
		level:   level,
	}
	w.detector = detect.NewDetector(dp, state, est,
		burstSampler{current: rig.Current, adc: rig.ADC}, w.tripOvercurrent)

	return w
}

// Acquired returns the total sample count for this run, including samples
// the ring buffer dropped. Detection fidelity outranks archival
// completeness.
func (w *Worker) Acquired() int64 {
	return w.acquired.Load()
}

// Start spawns the sampling loop and returns immediately.
func (w *Worker) Start() {
	w.done = make(chan struct{})
	go w.loop()
}

// Done is closed when the loop has fully wound down.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Reset arms the worker and its detector for the next run. Must only be
// called while the worker is stopped.
func (w *Worker) Reset() {
	w.acquired.Store(0)
	w.detector.Reset()
}

func (w *Worker) loop() {
	defer close(w.done)

	ticker := time.NewTicker(w.p.Interval)
	defer ticker.Stop()

	for !w.flags.StopRequested() {
		if confirmed := w.cycle(); confirmed {
			return
		}
		if w.flags.Aborted() {
			return
		}
		<-ticker.C
	}
}

// cycle performs one acquisition step and reports whether it confirmed the
// contact.
func (w *Worker) cycle() bool {
	now := time.Now()
	ma := w.current.ReadCurrentMA()

	if ma > w.p.CurrentCeilingMA {
		w.tripOvercurrent(ma)
		return false
	}

	code := w.adc.ReadDifferential()
	aux := w.adc.ReadSingleEnded(hal.AuxChannel)
	level := w.level.Get()

	res := w.est.FromCode(code)
	confirmed := w.detector.Step(res, level, now)

	w.acquired.Add(1)
	w.ring.Push(buffer.Sample{
		Timestamp:  now,
		CurrentMA:  ma,
		BridgeCode: code,
		AuxCode:    aux,
		Level:      level,
	})

	return confirmed
}

func (w *Worker) tripOvercurrent(ma float64) {
	w.flags.TripAbort()
	logger.ErrorWithCode(errors.New().WithData(errors.ErrOvercurrent, ma)).
		Float64("ceiling_ma", w.p.CurrentCeilingMA).
		Msg("Overcurrent: raising abort flag")
}
