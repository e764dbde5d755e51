// Package persist drains the sample ring buffer into durable storage and
// keeps the operator display fresh. Both duties run on their own cadence
// inside one worker context so the fast acquisition side never waits on
// either.
package persist

import (
	"fmt"
	"sync/atomic"
	"time"

	"codeberg.org/mkrell/relayctl/internal/buffer"
	"codeberg.org/mkrell/relayctl/internal/detect"
	"codeberg.org/mkrell/relayctl/internal/display"
	"codeberg.org/mkrell/relayctl/internal/estimator"
	"codeberg.org/mkrell/relayctl/internal/logger"
	"codeberg.org/mkrell/relayctl/internal/run"
)

// Params tunes the drain and display cadences.
type Params struct {
	DrainInterval   time.Duration
	DisplayInterval time.Duration
	BatchSize       int
	FlushEvery      int
}

// Worker is the persistence and display context. It runs until acquisition
// has stopped and the ring buffer is empty.
type Worker struct {
	p      Params
	ring   *buffer.Ring
	state  *detect.State
	view   *display.View
	sink   Sink
	est    *estimator.Estimator
	runCtx run.Context

	// acqStopped reports whether the acquisition worker has wound down.
	acqStopped func() bool

	written     atomic.Int64
	sinceFlush  int
	lastSample  buffer.Sample
	haveSample  bool
	batch       []buffer.Sample
	done        chan struct{}
}

func NewWorker(p Params, runCtx run.Context, ring *buffer.Ring, state *detect.State,
	view *display.View, sink Sink, est *estimator.Estimator, acqStopped func() bool,
) *Worker {
	return &Worker{
		p:          p,
		runCtx:     runCtx,
		ring:       ring,
		state:      state,
		view:       view,
		sink:       sink,
		est:        est,
		acqStopped: acqStopped,
		batch:      make([]buffer.Sample, p.BatchSize),
	}
}

// Written returns how many sample records reached the sink so far.
func (w *Worker) Written() int64 {
	return w.written.Load()
}

// Start spawns the worker loop and returns immediately.
func (w *Worker) Start() {
	w.done = make(chan struct{})
	go w.loop()
}

// Done is closed once the final drain has completed. The sink is flushed,
// not closed; the sequencer closes it at test-run end.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) loop() {
	defer close(w.done)

	drain := time.NewTicker(w.p.DrainInterval)
	defer drain.Stop()
	refresh := time.NewTicker(w.p.DisplayInterval)
	defer refresh.Stop()

	for {
		select {
		case <-drain.C:
			w.drainBatch()
			if w.acqStopped() && w.ring.Len() == 0 {
				w.finish()
				return
			}
		case <-refresh.C:
			w.refreshDisplay()
		}
	}
}

func (w *Worker) drainBatch() {
	n := w.ring.PopBatch(w.batch)
	for i := 0; i < n; i++ {
		s := w.batch[i]
		if err := w.sink.Append(FormatRecord(w.runCtx, s, w.est)); err != nil {
			logger.Error().Err(err).Msg("Failed to append sample record")
			continue
		}
		w.written.Add(1)
		w.sinceFlush++
		w.lastSample = s
		w.haveSample = true

		if w.sinceFlush >= w.p.FlushEvery {
			if err := w.sink.Flush(); err != nil {
				logger.Error().Err(err).Msg("Failed to flush sample log")
			}
			w.sinceFlush = 0
		}
	}
}

func (w *Worker) finish() {
	if err := w.sink.Flush(); err != nil {
		logger.Error().Err(err).Msg("Failed to flush sample log on shutdown")
	}
	w.refreshDisplay()
	logger.Debug().
		Int64("records", w.written.Load()).
		Int64("dropped", w.ring.Dropped()).
		Msg("Persistence worker drained")
}

// refreshDisplay recomputes the four status lines; the view repaints only
// the ones whose text changed.
func (w *Worker) refreshDisplay() {
	snap, ok := w.state.Snapshot()
	if !ok {
		// Lock timeout: skip this refresh cycle.
		return
	}

	status := "SCAN"
	if snap.Confirmed {
		status = "DONE"
	}

	level := 0
	currentMA := 0.0
	if w.haveSample {
		level = w.lastSample.Level
		currentMA = w.lastSample.CurrentMA
	}

	w.view.SetLine(0, fmt.Sprintf("T%02d L%03d %s", w.runCtx.TestID, level, status))

	switch {
	case snap.Confirmed:
		w.view.SetLine(1, "R "+fixed(snap.ConfirmedOhms))
	case snap.CurrentValid:
		w.view.SetLine(1, "R "+fixed(snap.CurrentOhms))
	default:
		w.view.SetLine(1, "R "+NA)
	}

	w.view.SetLine(2, fmt.Sprintf("I %smA", fixed(currentMA)))
	w.view.SetLine(3, fmt.Sprintf("BUF %03d DRP %03d", w.ring.Len(), w.ring.Dropped()))
	w.view.Flush()
}
