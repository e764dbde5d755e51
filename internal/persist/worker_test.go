package persist_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mkrell/relayctl/internal/buffer"
	"codeberg.org/mkrell/relayctl/internal/detect"
	"codeberg.org/mkrell/relayctl/internal/display"
	"codeberg.org/mkrell/relayctl/internal/hal"
	"codeberg.org/mkrell/relayctl/internal/persist"
	"codeberg.org/mkrell/relayctl/internal/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lockTimeout = 20 * time.Millisecond

func testParams() persist.Params {
	return persist.Params{
		DrainInterval:   time.Millisecond,
		DisplayInterval: 5 * time.Millisecond,
		BatchSize:       50,
		FlushEvery:      100,
	}
}

func TestDrainsBufferToSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := persist.OpenFileSink(dir, 1)
	require.NoError(t, err)

	ring := buffer.NewRing(500, lockTimeout)
	state := detect.NewState(lockTimeout)
	panel := hal.NewSimDisplay()
	runCtx := run.Context{TestID: 1, Started: time.Now()}

	var acqDone atomic.Bool
	for i := 0; i < 120; i++ {
		require.True(t, ring.Push(buffer.Sample{
			Timestamp:  runCtx.Started.Add(time.Duration(i) * time.Millisecond),
			CurrentMA:  1.0,
			BridgeCode: codeForOhms(100),
			Level:      i % 256,
		}))
	}

	w := persist.NewWorker(testParams(), runCtx, ring, state,
		display.NewView(panel), sink, testEstimator(), acqDone.Load)
	w.Start()

	time.Sleep(20 * time.Millisecond)
	acqDone.Store(true)

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not finish")
	}
	require.NoError(t, sink.Close())

	assert.Equal(t, int64(120), w.Written())
	assert.Equal(t, 0, ring.Len())

	data, err := os.ReadFile(filepath.Join(dir, "run_001.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 121, "header plus every sample")
	assert.Equal(t, persist.Header, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,0,0,1.000,"))
}

func TestExitsOnlyWhenStoppedAndEmpty(t *testing.T) {
	dir := t.TempDir()
	sink, err := persist.OpenFileSink(dir, 2)
	require.NoError(t, err)
	defer sink.Close()

	ring := buffer.NewRing(100, lockTimeout)
	state := detect.NewState(lockTimeout)
	runCtx := run.Context{TestID: 2, Started: time.Now()}

	var acqDone atomic.Bool
	w := persist.NewWorker(testParams(), runCtx, ring, state,
		display.NewView(hal.NewSimDisplay()), sink, testEstimator(), acqDone.Load)
	w.Start()

	// Acquisition still live: an empty buffer must not end the worker.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-w.Done():
		t.Fatal("worker exited while acquisition was still running")
	default:
	}

	// Samples queued after the stop are still drained before exit.
	for i := 0; i < 10; i++ {
		require.True(t, ring.Push(buffer.Sample{Timestamp: runCtx.Started, BridgeCode: 16500}))
	}
	acqDone.Store(true)

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not finish")
	}
	assert.Equal(t, int64(10), w.Written())
}

func TestDisplayShowsDetectionState(t *testing.T) {
	dir := t.TempDir()
	sink, err := persist.OpenFileSink(dir, 3)
	require.NoError(t, err)
	defer sink.Close()

	ring := buffer.NewRing(100, lockTimeout)
	state := detect.NewState(lockTimeout)
	state.Confirm(time.Now(), 1500.0, 42)
	panel := hal.NewSimDisplay()
	runCtx := run.Context{TestID: 3, Started: time.Now()}

	var acqDone atomic.Bool
	require.True(t, ring.Push(buffer.Sample{
		Timestamp: runCtx.Started,
		CurrentMA: 12.0,
		Level:     42,
	}))

	w := persist.NewWorker(testParams(), runCtx, ring, state,
		display.NewView(panel), sink, testEstimator(), acqDone.Load)
	w.Start()

	time.Sleep(30 * time.Millisecond)
	acqDone.Store(true)
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not finish")
	}

	assert.Equal(t, "T03 L042 DONE", panel.Line(0))
	assert.Equal(t, "R 1500.000", panel.Line(1))
	assert.Equal(t, "I 12.000mA", panel.Line(2))
	assert.True(t, strings.HasPrefix(panel.Line(3), "BUF 000"), "got %q", panel.Line(3))
}
