package archive

import (
	"context"

	"codeberg.org/mkrell/relayctl/internal/run"
)

// Recorder is the domain interface for archiving test-run outcomes.
type Recorder interface {
	Record(ctx context.Context, outcome run.Outcome) error
	Close() error
}

// Repository is the storage-side interface behind the Recorder.
type Repository interface {
	Record(outcome run.Outcome) error
	Close() error
}
