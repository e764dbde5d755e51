package sequencer

import (
	"context"
	"time"

	"codeberg.org/mkrell/relayctl/internal/errors"
	"codeberg.org/mkrell/relayctl/internal/logger"
	"codeberg.org/mkrell/relayctl/internal/persist"
	"codeberg.org/mkrell/relayctl/internal/run"
)

// sweepResult is the sweep loop's verdict before termination.
type sweepResult int

const (
	sweepContact sweepResult = iota
	sweepExhausted
	sweepAborted
	sweepTimedOut
	sweepCancelled
)

// Run executes one complete test run and returns its single outcome. A
// storage failure is fatal before anything starts; a cancelled context
// tears the run down without an outcome.
func (s *Sequencer) Run(ctx context.Context) (run.Outcome, error) {
	s.arm()

	sink, err := persist.OpenFileSink(s.cfg.DataDir, s.testID)
	if err != nil {
		// StorageUnavailable: the run does not start.
		return run.Outcome{}, err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("Failed to close sample log")
		}
	}()

	runCtx := run.Context{TestID: s.testID, Started: time.Now()}
	logger.Info().
		Int("test_id", runCtx.TestID).
		Int("sweep_start", s.cfg.Sweep.Start).
		Int("sweep_end", s.cfg.Sweep.End).
		Msg("Test run starting")

	w := s.startWorkers(runCtx, sink)
	result := s.sweep(ctx, runCtx, &w, sink)

	// Terminating: zero actuation first, then wind the workers down.
	s.setLevel(0)
	s.stopWorkers(w)

	if result == sweepCancelled {
		return run.Outcome{}, ctx.Err()
	}

	outcome := s.report(runCtx, result, w)
	if err := s.recorder.Record(ctx, outcome); err != nil {
		logger.Error().Err(err).Msg("Failed to archive run outcome")
	}

	return outcome, nil
}

// sweep steps the actuation level through its range, holding each level for
// the dwell time while polling for contact, abort, timeout and operator
// pause.
func (s *Sequencer) sweep(ctx context.Context, runCtx run.Context, w *workers, sink persist.Sink) sweepResult {
	for s.sweepPos <= s.cfg.Sweep.End {
		s.setLevel(s.sweepPos)

		deadline := time.Now().Add(s.cfg.Timing.Dwell)
		for time.Now().Before(deadline) {
			if res, done := s.poll(ctx, runCtx, w, sink); done {
				return res
			}
			time.Sleep(s.cfg.Timing.PollInterval)
		}

		s.sweepPos += s.cfg.Sweep.Step
	}

	return sweepExhausted
}

// poll is one short-interval check of every termination condition. done is
// true when the sweep must end with res.
func (s *Sequencer) poll(ctx context.Context, runCtx run.Context, w *workers, sink persist.Sink) (res sweepResult, done bool) {
	select {
	case <-ctx.Done():
		return sweepCancelled, true
	case <-s.rig.Input.Events():
		if !s.pause(ctx, runCtx, w, sink) {
			return sweepCancelled, true
		}
		return 0, false
	default:
	}

	switch {
	case s.flags.Aborted():
		return sweepAborted, true
	case s.state.Confirmed():
		return sweepContact, true
	case runCtx.Elapsed(time.Now()) > s.cfg.Timing.GlobalTimeout:
		return sweepTimedOut, true
	case doneClosed(w.acq.Done()):
		// The acquisition loop only ends on confirm, abort or stop. The
		// fast Confirmed check above can miss a confirm on a lock timeout,
		// so re-read the snapshot before calling the exit a failure.
		if s.contactAfterExit() {
			return sweepContact, true
		}
		logger.Error().Msg("Acquisition worker exited unexpectedly")
		return sweepAborted, true
	}

	return 0, false
}

// contactAfterExit reports whether a stopped acquisition worker left a
// confirmed contact behind. The worker is gone, so the snapshot lock is
// uncontended.
func (s *Sequencer) contactAfterExit() bool {
	snap, ok := s.state.Snapshot()
	return ok && snap.Confirmed
}

// pause stops both workers, zeroes actuation, and blocks until the next
// operator signal, then restarts the workers at the same sweep position.
// The run's start timestamp is retained, so elapsed time includes the
// paused duration. Returns false when the context was cancelled while
// paused.
func (s *Sequencer) pause(ctx context.Context, runCtx run.Context, w *workers, sink persist.Sink) bool {
	logger.Info().Int("level", s.sweepPos).Msg("Paused by operator")
	s.stopWorkers(*w)
	s.setLevel(0)

	select {
	case <-ctx.Done():
		return false
	case <-s.rig.Input.Events():
	}

	// Detection state and sweep position survive the pause untouched; only
	// the stop flag is cleared so the workers can run again.
	s.flags.ResetStop()
	*w = s.startWorkers(runCtx, sink)
	logger.Info().Int("level", s.sweepPos).Msg("Resumed by operator")

	return true
}

// report turns the sweep verdict into the run's single outcome.
func (s *Sequencer) report(runCtx run.Context, result sweepResult, w workers) run.Outcome {
	now := time.Now()
	outcome := run.Outcome{
		TestID:          runCtx.TestID,
		SamplesAcquired: w.acq.Acquired(),
		SamplesDropped:  s.ring.Dropped(),
	}

	switch result {
	case sweepContact:
		snap, ok := s.state.Snapshot()
		if !ok {
			// Workers are stopped; a lock timeout here means something is
			// badly wrong, but the confirmation itself is trustworthy.
			logger.ErrorWithCode(errors.New().New(errors.ErrLockTimeout)).
				Msg("Detection state unavailable at report time")
		}
		outcome.Kind = run.OutcomeContact
		outcome.Level = snap.LevelAtContact
		outcome.ResistanceOhm = snap.ConfirmedOhms
		outcome.Latency = snap.ConfirmedAt.Sub(runCtx.Started)
	case sweepExhausted:
		outcome.Kind = run.OutcomeNoContact
		outcome.MaxLevel = s.cfg.Sweep.End
		outcome.Duration = runCtx.Elapsed(now)
	case sweepAborted:
		outcome.Kind = run.OutcomeSafetyAbort
		logger.ErrorWithCode(errors.New().New(errors.ErrRunAborted)).
			Int("test_id", runCtx.TestID).
			Msg("Test run aborted")
	case sweepTimedOut:
		outcome.Kind = run.OutcomeTimeout
		logger.ErrorWithCode(errors.New().WithData(errors.ErrRunTimeout, s.cfg.Timing.GlobalTimeout)).
			Int("test_id", runCtx.TestID).
			Msg("Global timeout exceeded")
	}

	logger.Info().
		Int("test_id", outcome.TestID).
		Str("outcome", outcome.Kind.String()).
		Int64("samples", outcome.SamplesAcquired).
		Int64("dropped", outcome.SamplesDropped).
		Msg(outcome.Describe())

	return outcome
}

// NextTest advances the counter after a reported run. It returns true when
// the full cycle completed and the sequencer now needs operator
// confirmation before wrapping back to test one.
func (s *Sequencer) NextTest() (cycleDone bool) {
	if s.testID >= s.cfg.Sweep.TestsPerCycle {
		s.testID = 1
		return true
	}
	s.testID++

	return false
}

// TestID returns the current test number.
func (s *Sequencer) TestID() int {
	return s.testID
}

// Cycle runs test runs back to back until the context ends. After each
// full cycle it blocks for operator confirmation before wrapping.
func (s *Sequencer) Cycle(ctx context.Context) error {
	for {
		if _, err := s.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if s.NextTest() {
			logger.Info().Msg("Cycle complete; waiting for operator confirmation")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.rig.Input.Events():
			}
		}
	}
}
