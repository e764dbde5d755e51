package sequencer

import (
	"context"
	"time"

	"codeberg.org/mkrell/relayctl/internal/logger"
	"codeberg.org/mkrell/relayctl/internal/persist"
	"codeberg.org/mkrell/relayctl/internal/run"
)

// RunMonitor holds the actuation output at the configured monitor level and
// streams samples until the context ends or a safety abort trips. No sweep,
// no contact verdict; the sample log is the product.
func (s *Sequencer) RunMonitor(ctx context.Context) error {
	s.arm()

	sink, err := persist.OpenFileSink(s.cfg.DataDir, s.testID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("Failed to close sample log")
		}
	}()

	runCtx := run.Context{TestID: s.testID, Started: time.Now()}
	logger.Info().Int("level", s.cfg.MonitorLevel).Msg("Monitor mode starting")

	w := s.startWorkers(runCtx, sink)
	s.setLevel(s.cfg.MonitorLevel)

	for !s.flags.Aborted() && ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.Timing.PollInterval):
		}
	}

	s.setLevel(0)
	s.stopWorkers(w)

	if s.flags.Aborted() {
		logger.Warn().Msg("Monitor mode ended by safety abort")
		return nil
	}

	return ctx.Err()
}
