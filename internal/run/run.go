// Package run carries the transient per-test-run context: the shared
// control flags, the run identity, and the single outcome every run must
// report.
package run

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Flags are the cross-context control scalars. They are plain atomics:
// single-writer, multi-reader values that need no lock.
type Flags struct {
	abort atomic.Bool
	stop  atomic.Bool
}

// TripAbort raises the global safety-abort flag.
func (f *Flags) TripAbort() { f.abort.Store(true) }

// Aborted reports whether the safety-abort flag is raised.
func (f *Flags) Aborted() bool { return f.abort.Load() }

// RequestStop asks both workers to wind down cooperatively.
func (f *Flags) RequestStop() { f.stop.Store(true) }

// StopRequested reports whether a stop has been requested.
func (f *Flags) StopRequested() bool { return f.stop.Load() }

// Reset re-arms the flags for the next run or a resume.
func (f *Flags) Reset() {
	f.abort.Store(false)
	f.stop.Store(false)
}

// ResetStop clears only the stop flag, used when resuming from pause while
// a raised abort must stay fatal.
func (f *Flags) ResetStop() { f.stop.Store(false) }

// Level mirrors the actuation output as an atomic scalar so the acquisition
// worker can stamp samples without locking. The sequencer is the only
// writer.
type Level struct {
	v atomic.Int64
}

func (l *Level) Set(level int) { l.v.Store(int64(level)) }
func (l *Level) Get() int      { return int(l.v.Load()) }

// OutcomeKind is the termination reason of a test run.
type OutcomeKind int

const (
	OutcomeContact OutcomeKind = iota
	OutcomeNoContact
	OutcomeSafetyAbort
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContact:
		return "contact"
	case OutcomeNoContact:
		return "no_contact"
	case OutcomeSafetyAbort:
		return "safety_abort"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the single operator-facing result of one test run.
type Outcome struct {
	TestID int
	Kind   OutcomeKind

	// Contact
	Level         int
	ResistanceOhm float64
	Latency       time.Duration

	// NoContact
	MaxLevel int
	Duration time.Duration

	SamplesAcquired int64
	SamplesDropped  int64
}

// Describe renders the operator-facing one-liner.
func (o Outcome) Describe() string {
	switch o.Kind {
	case OutcomeContact:
		return fmt.Sprintf("Contact at level %d: %.3f ohm after %d ms",
			o.Level, o.ResistanceOhm, o.Latency.Milliseconds())
	case OutcomeNoContact:
		return fmt.Sprintf("No contact up to level %d in %.1f s",
			o.MaxLevel, o.Duration.Seconds())
	case OutcomeSafetyAbort:
		return "Safety abort: overcurrent"
	case OutcomeTimeout:
		return "Timeout: global test ceiling exceeded"
	default:
		return "unknown outcome"
	}
}

// Context identifies one sweep-and-detect cycle.
type Context struct {
	TestID  int
	Started time.Time
}

// Elapsed returns time since the run started. Pause retains the original
// start timestamp, so paused duration is included.
func (c Context) Elapsed(now time.Time) time.Duration {
	return now.Sub(c.Started)
}
