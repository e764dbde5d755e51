// Package archive persists one row per concluded test run to a local
// sqlite database, so contact-resistance trends across cycles survive the
// per-run sample logs.
package archive

import (
	"context"

	"codeberg.org/mkrell/relayctl/internal/errors"
	"codeberg.org/mkrell/relayctl/internal/logger"
	"codeberg.org/mkrell/relayctl/internal/run"
)

type service struct {
	repo Repository
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, run.Outcome) error { return nil }
func (noopRecorder) Close() error                              { return nil }

// NewService returns a Recorder; a disabled config yields a no-op.
func NewService(cfg Config) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Run archive disabled, using no-op recorder")
		return noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, outcome run.Outcome) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(errors.ErrTimeout, ctx.Err())
	default:
	}

	if err := s.repo.Record(outcome); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}
