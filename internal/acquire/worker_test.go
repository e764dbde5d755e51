package acquire_test

import (
	"testing"
	"time"

	"codeberg.org/mkrell/relayctl/internal/acquire"
	"codeberg.org/mkrell/relayctl/internal/buffer"
	"codeberg.org/mkrell/relayctl/internal/detect"
	"codeberg.org/mkrell/relayctl/internal/estimator"
	"codeberg.org/mkrell/relayctl/internal/hal"
	"codeberg.org/mkrell/relayctl/internal/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lockTimeout = 20 * time.Millisecond

type fixture struct {
	rig    *hal.SimRig
	state  *detect.State
	ring   *buffer.Ring
	flags  *run.Flags
	level  *run.Level
	worker *acquire.Worker
}

func newFixture(t *testing.T, ringCap int) *fixture {
	t.Helper()

	rig := hal.NewSimRig(50, 100.0)
	state := detect.NewState(lockTimeout)
	ring := buffer.NewRing(ringCap, lockTimeout)
	flags := &run.Flags{}
	level := &run.Level{}

	est := estimator.New(estimator.Params{
		R1Ohm:        1000.0,
		ExcitationMV: 3300.0,
		MVPerLSB:     0.1,
		CeilingOhm:   1e6,
	})
	worker := acquire.NewWorker(
		acquire.Params{Interval: time.Millisecond, CurrentCeilingMA: 70.0},
		detect.Params{
			ContactMinOhm:    10.0,
			BurstSamples:     5,
			MaxCVPercent:     40.0,
			InterSampleDelay: 10 * time.Microsecond,
			CurrentCeilingMA: 70.0,
		},
		rig.Rig(), est, state, ring, flags, level,
	)

	return &fixture{rig: rig, state: state, ring: ring, flags: flags, level: level, worker: worker}
}

func waitDone(t *testing.T, w *acquire.Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop in time")
	}
}

func TestStopsOnContactConfirmation(t *testing.T) {
	f := newFixture(t, 500)
	f.level.Set(60)
	f.rig.SetLevel(60)

	f.worker.Start()
	waitDone(t, f.worker)

	snap, ok := f.state.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.Confirmed)
	assert.InDelta(t, 100.0, snap.ConfirmedOhms, 2.0)
	assert.Equal(t, 60, snap.LevelAtContact)
	assert.Greater(t, f.worker.Acquired(), int64(0))
}

func TestOvercurrentRaisesAbortAndStops(t *testing.T) {
	f := newFixture(t, 500)
	f.rig.InjectOvercurrent(85.0)

	f.worker.Start()
	waitDone(t, f.worker)

	assert.True(t, f.flags.Aborted())
	snap, ok := f.state.Snapshot()
	require.True(t, ok)
	assert.False(t, snap.Confirmed, "abort must not confirm contact")
	assert.Equal(t, int64(0), f.worker.Acquired(), "tripping cycle records no sample")
}

func TestCooperativeStop(t *testing.T) {
	f := newFixture(t, 500)
	// Below contact level the bridge stays railed, so detection keeps
	// searching and only the stop flag ends the loop.
	f.level.Set(10)
	f.rig.SetLevel(10)

	f.worker.Start()
	time.Sleep(20 * time.Millisecond)
	f.flags.RequestStop()
	waitDone(t, f.worker)

	assert.Greater(t, f.worker.Acquired(), int64(0))
	snap, ok := f.state.Snapshot()
	require.True(t, ok)
	assert.False(t, snap.Confirmed)
	assert.False(t, snap.CurrentValid, "open bridge must read invalid")
}

func TestFullBufferStillCountsAcquired(t *testing.T) {
	f := newFixture(t, 2)
	f.level.Set(10)
	f.rig.SetLevel(10)

	f.worker.Start()
	time.Sleep(30 * time.Millisecond)
	f.flags.RequestStop()
	waitDone(t, f.worker)

	acquired := f.worker.Acquired()
	assert.Greater(t, acquired, int64(2), "counter keeps running past a full buffer")
	assert.Equal(t, acquired-2, f.ring.Dropped(), "drops are counted, not overwritten")
	assert.Equal(t, 2, f.ring.Len())
}

func TestResetArmsNextRun(t *testing.T) {
	f := newFixture(t, 500)
	f.level.Set(60)
	f.rig.SetLevel(60)

	f.worker.Start()
	waitDone(t, f.worker)
	require.Greater(t, f.worker.Acquired(), int64(0))

	f.flags.Reset()
	f.state.Reset()
	f.worker.Reset()
	assert.Equal(t, int64(0), f.worker.Acquired())

	// The re-armed worker confirms again on the same stable contact.
	f.worker.Start()
	waitDone(t, f.worker)
	snap, ok := f.state.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.Confirmed)
}
