package archive

import "codeberg.org/mkrell/relayctl/internal/errors"

const (
	defaultDirPerm = 0o755

	// batchSize is 1: outcomes arrive once per run, seconds to minutes
	// apart, so each is committed in its own transaction and the archive
	// never trails a concluded run.
	batchSize = 1
)

type Config struct {
	DBPath  string
	Enabled bool
}

func (c Config) Validate() error {
	if c.Enabled && c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}

	return nil
}
