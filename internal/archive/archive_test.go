package archive_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mkrell/relayctl/internal/archive"
	"codeberg.org/mkrell/relayctl/internal/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledArchiveIsNoop(t *testing.T) {
	rec, err := archive.NewService(archive.Config{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), run.Outcome{Kind: run.OutcomeContact}))
	require.NoError(t, rec.Close())
}

func TestEnabledArchiveRequiresPath(t *testing.T) {
	_, err := archive.NewService(archive.Config{Enabled: true})
	require.Error(t, err)
}

func TestRecordAndReadBack(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	rec, err := archive.NewService(archive.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)

	outcomes := []run.Outcome{
		{
			TestID:          1,
			Kind:            run.OutcomeContact,
			Level:           42,
			ResistanceOhm:   101.5,
			Latency:         1200 * time.Millisecond,
			SamplesAcquired: 240,
		},
		{
			TestID:   2,
			Kind:     run.OutcomeNoContact,
			MaxLevel: 255,
			Duration: 30 * time.Second,
		},
		{TestID: 3, Kind: run.OutcomeSafetyAbort},
		{TestID: 4, Kind: run.OutcomeTimeout},
	}
	for _, o := range outcomes {
		require.NoError(t, rec.Record(context.Background(), o))
	}
	require.NoError(t, rec.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, 4, count)

	var outcome string
	var level int
	var resistance float64
	require.NoError(t, db.QueryRow(
		"SELECT outcome, level, resistance_ohm FROM runs WHERE test_id = 1").
		Scan(&outcome, &level, &resistance))
	assert.Equal(t, "contact", outcome)
	assert.Equal(t, 42, level)
	assert.InDelta(t, 101.5, resistance, 1e-9)

	require.NoError(t, db.QueryRow(
		"SELECT outcome FROM runs WHERE test_id = 3").Scan(&outcome))
	assert.Equal(t, "safety_abort", outcome)
}

func TestRecordIsDurableBeforeClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	rec, err := archive.NewService(archive.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Record(context.Background(),
		run.Outcome{TestID: 1, Kind: run.OutcomeContact, ResistanceOhm: 55.0}))

	// A second reader must see the row while the recorder is still open.
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecordHonorsCancelledContext(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	rec, err := archive.NewService(archive.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)
	defer rec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = rec.Record(ctx, run.Outcome{TestID: 9, Kind: run.OutcomeContact})
	require.Error(t, err)
}
