package persist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"codeberg.org/mkrell/relayctl/internal/errors"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Sink is the append-only durable store for sample records.
type Sink interface {
	Append(line string) error
	Flush() error
	Close() error
}

// fileSink writes one log file per test run, buffered, flushed on demand so
// a power loss costs at most one flush window.
type fileSink struct {
	f *os.File
	w *bufio.Writer
}

// OpenFileSink creates (or truncates) the run log for testID under dir and
// writes the header. A failure here is fatal to the run before it starts.
func OpenFileSink(dir string, testID int) (Sink, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  dir,
			Error: err.Error(),
		})
	}

	path := filepath.Join(dir, fmt.Sprintf("run_%03d.csv", testID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "open_file",
			Path:  path,
			Error: err.Error(),
		})
	}

	s := &fileSink{f: f, w: bufio.NewWriter(f)}
	if err := s.Append(Header); err != nil {
		f.Close()
		return nil, err
	}

	return s, nil
}

func (s *fileSink) Append(line string) error {
	if _, err := s.w.WriteString(line + "\n"); err != nil {
		return errors.New().Wrap(ErrStorageAppend, err)
	}

	return nil
}

func (s *fileSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return errors.New().Wrap(ErrStorageFlush, err)
	}
	if err := s.f.Sync(); err != nil {
		return errors.New().Wrap(ErrStorageFlush, err)
	}

	return nil
}

func (s *fileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	if err := s.f.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}
