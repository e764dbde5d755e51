// Package sequencer owns the test lifecycle: it sweeps the actuation level,
// supervises both workers, reacts to contact, overcurrent, timeout and
// operator pause, and reports exactly one outcome per test run.
package sequencer

import (
	"time"

	"codeberg.org/mkrell/relayctl/internal/acquire"
	"codeberg.org/mkrell/relayctl/internal/archive"
	"codeberg.org/mkrell/relayctl/internal/buffer"
	"codeberg.org/mkrell/relayctl/internal/config"
	"codeberg.org/mkrell/relayctl/internal/detect"
	"codeberg.org/mkrell/relayctl/internal/display"
	"codeberg.org/mkrell/relayctl/internal/errors"
	"codeberg.org/mkrell/relayctl/internal/estimator"
	"codeberg.org/mkrell/relayctl/internal/hal"
	"codeberg.org/mkrell/relayctl/internal/logger"
	"codeberg.org/mkrell/relayctl/internal/persist"
	"codeberg.org/mkrell/relayctl/internal/run"
)

const ringCapacity = 500

// Sequencer drives one rig through sweep-and-detect cycles. All shared
// structures are allocated once here and reset, never reallocated, at the
// start of each run.
type Sequencer struct {
	cfg      *config.Config
	rig      hal.Rig
	est      *estimator.Estimator
	ring     *buffer.Ring
	state    *detect.State
	view     *display.View
	flags    *run.Flags
	level    *run.Level
	recorder archive.Recorder

	testID   int
	sweepPos int
}

func New(cfg *config.Config, rig hal.Rig, recorder archive.Recorder) *Sequencer {
	est := estimator.New(estimator.Params{
		R1Ohm:        cfg.Bridge.R1Ohm,
		ExcitationMV: cfg.Bridge.ExcitationMV,
		MVPerLSB:     cfg.Bridge.MVPerLSB,
		CeilingOhm:   cfg.Limits.ResistanceCeilingOhm,
	})

	return &Sequencer{
		cfg:      cfg,
		rig:      rig,
		est:      est,
		ring:     buffer.NewRing(ringCapacity, cfg.Timing.LockTimeout),
		state:    detect.NewState(cfg.Timing.LockTimeout),
		view:     display.NewView(rig.Display),
		flags:    &run.Flags{},
		level:    &run.Level{},
		recorder: recorder,
		testID:   1,
	}
}

// setLevel writes the actuation output and its atomic mirror together.
func (s *Sequencer) setLevel(level int) {
	s.rig.Actuator.SetLevel(level)
	s.level.Set(level)
}

// arm resets every shared structure for the run about to start. Workers
// must be stopped.
func (s *Sequencer) arm() {
	s.flags.Reset()
	s.ring.Reset()
	s.state.Reset()
	s.view.Reset()
	s.sweepPos = s.cfg.Sweep.Start
	s.setLevel(0)
}

// workers holds one run's worker pair.
type workers struct {
	acq *acquire.Worker
	per *persist.Worker
}

func (s *Sequencer) startWorkers(runCtx run.Context, sink persist.Sink) workers {
	acq := acquire.NewWorker(
		acquire.Params{
			Interval:         s.cfg.Timing.AcquireInterval,
			CurrentCeilingMA: s.cfg.Limits.CurrentCeilingMA,
		},
		detect.Params{
			ContactMinOhm:    s.cfg.Limits.ContactMinOhm,
			BurstSamples:     s.cfg.Limits.StabilizeSamples,
			MaxCVPercent:     s.cfg.Limits.StabilizeMaxCV,
			InterSampleDelay: s.cfg.Timing.StabilizeDelay,
			CurrentCeilingMA: s.cfg.Limits.CurrentCeilingMA,
		},
		s.rig, s.est, s.state, s.ring, s.flags, s.level,
	)

	per := persist.NewWorker(
		persist.Params{
			DrainInterval:   s.cfg.Timing.DrainInterval,
			DisplayInterval: s.cfg.Timing.DisplayInterval,
			BatchSize:       50,
			FlushEvery:      100,
		},
		runCtx, s.ring, s.state, s.view, sink, s.est,
		func() bool { return doneClosed(acq.Done()) },
	)

	acq.Start()
	per.Start()

	return workers{acq: acq, per: per}
}

// stopWorkers requests a cooperative stop and blocks, bounded, until both
// workers confirm termination. No worker may outlive its run.
func (s *Sequencer) stopWorkers(w workers) {
	s.flags.RequestStop()
	s.join(w.acq.Done(), "acquisition")
	s.join(w.per.Done(), "persistence")
}

func (s *Sequencer) join(done <-chan struct{}, name string) {
	select {
	case <-done:
	case <-time.After(s.cfg.Timing.JoinTimeout):
		logger.ErrorWithCode(errors.New().WithData(errors.ErrWorkerJoin, name)).
			Msg("Worker join timed out")
	}
}

func doneClosed(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}
