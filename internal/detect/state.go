package detect

import (
	"time"

	"codeberg.org/mkrell/relayctl/internal/locking"
)

// Snapshot is a point-in-time copy of the detection record, safe to use
// outside the lock.
type Snapshot struct {
	CurrentOhms    float64
	CurrentValid   bool
	Confirmed      bool
	ConfirmedAt    time.Time
	ConfirmedOhms  float64
	LevelAtContact int
}

// State is the shared detection record. The acquisition worker is the only
// writer; the sequencer and persistence worker read bounded-wait snapshot
// copies. Confirmed transitions false to true at most once per test run and
// only Reset reverts it.
type State struct {
	mu *locking.TimedMutex

	currentOhms  float64
	currentValid bool

	confirmed      bool
	confirmedAt    time.Time
	confirmedOhms  float64
	levelAtContact int
}

func NewState(lockTimeout time.Duration) *State {
	return &State{mu: locking.NewTimedMutex(lockTimeout)}
}

// SetCurrent records the latest estimator output. It reports whether the
// write landed; a lock timeout skips this cycle's update.
func (s *State) SetCurrent(ohms float64, valid bool) bool {
	return s.mu.With(func() {
		s.currentOhms = ohms
		s.currentValid = valid
	})
}

// Confirm records the terminal contact acceptance. Once confirmed the record
// is frozen until Reset.
func (s *State) Confirm(at time.Time, ohms float64, level int) bool {
	return s.mu.With(func() {
		if s.confirmed {
			return
		}
		s.confirmed = true
		s.confirmedAt = at
		s.confirmedOhms = ohms
		s.levelAtContact = level
	})
}

// Confirmed reports the terminal flag without blocking. The flag is
// monotonic per run, so a raced read is at worst one cycle stale.
func (s *State) Confirmed() bool {
	ok := false
	if !s.mu.With(func() { ok = s.confirmed }) {
		return false
	}

	return ok
}

// Snapshot copies the record under the bounded lock. The second return is
// false when the lock could not be taken in time.
func (s *State) Snapshot() (Snapshot, bool) {
	var snap Snapshot
	ok := s.mu.With(func() {
		snap = Snapshot{
			CurrentOhms:    s.currentOhms,
			CurrentValid:   s.currentValid,
			Confirmed:      s.confirmed,
			ConfirmedAt:    s.confirmedAt,
			ConfirmedOhms:  s.confirmedOhms,
			LevelAtContact: s.levelAtContact,
		}
	})

	return snap, ok
}

// Reset arms the record for the next test run. It must only be called while
// the workers are stopped.
func (s *State) Reset() {
	s.mu.With(func() {
		s.currentOhms = 0
		s.currentValid = false
		s.confirmed = false
		s.confirmedAt = time.Time{}
		s.confirmedOhms = 0
		s.levelAtContact = 0
	})
}
