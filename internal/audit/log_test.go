package audit

import (
	"sync"
	"testing"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupLog(t *testing.T) (*Log, *database.Database) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: t.TempDir() + "/test.db"},
		},
	}

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	l, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return l, db
}

func TestAppend(t *testing.T) {
	l, _ := setupLog(t)

	t.Run("Append assigns id, sequence, and timestamp", func(t *testing.T) {
		rec, err := l.Append(Entry{
			AccessPointID:  "GATE_1",
			PersonID:       "p1",
			CredentialType: models.CredentialCard,
			Direction:      models.DirectionEntry,
			Result:         models.ResultGranted,
			Reason:         "allowed",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, int64(1), rec.Seq)
		assert.False(t, rec.Timestamp.IsZero())
		assert.True(t, rec.PersonID.Valid)
	})

	t.Run("Sequence is strictly increasing", func(t *testing.T) {
		a, err := l.Append(Entry{AccessPointID: "GATE_1", Result: models.ResultDenied})
		require.NoError(t, err)
		b, err := l.Append(Entry{AccessPointID: "GATE_1", Result: models.ResultDenied})
		require.NoError(t, err)
		assert.Equal(t, a.Seq+1, b.Seq)
	})

	t.Run("Optional fields stay null when empty", func(t *testing.T) {
		rec, err := l.Append(Entry{AccessPointID: "GATE_1", Result: models.ResultError})
		require.NoError(t, err)
		assert.False(t, rec.PersonID.Valid)
		assert.False(t, rec.EventID.Valid)
		assert.False(t, rec.Confidence.Valid)
	})
}

func TestSequenceSurvivesRestart(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: t.TempDir() + "/test.db"},
		},
	}

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	l, err := New(db, zap.NewNop())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := l.Append(Entry{AccessPointID: "GATE_1", Result: models.ResultGranted})
		require.NoError(t, err)
	}

	// A new log over the same storage continues the sequence
	reopened, err := New(db, zap.NewNop())
	require.NoError(t, err)
	rec, err := reopened.Append(Entry{AccessPointID: "GATE_1", Result: models.ResultGranted})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Seq)
}

func TestConcurrentAppends(t *testing.T) {
	l, _ := setupLog(t)

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := l.Append(Entry{AccessPointID: "GATE_1", Result: models.ResultGranted})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	logs, total, err := l.Query(database.LogFilter{Limit: writers * perWriter})
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), total)

	// No duplicate sequence numbers
	seen := make(map[int64]bool)
	for _, rec := range logs {
		assert.False(t, seen[rec.Seq], "duplicate seq %d", rec.Seq)
		seen[rec.Seq] = true
	}
}

func TestFindByEventID(t *testing.T) {
	l, _ := setupLog(t)

	_, err := l.Append(Entry{AccessPointID: "GATE_1", Result: models.ResultGranted, EventID: "evt-1"})
	require.NoError(t, err)

	rec, err := l.FindByEventID("evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.ResultGranted, rec.Result)

	_, err = l.FindByEventID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet(t *testing.T) {
	l, _ := setupLog(t)

	rec, err := l.Append(Entry{AccessPointID: "GATE_1", Result: models.ResultDenied})
	require.NoError(t, err)

	got, err := l.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Seq, got.Seq)

	_, err = l.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryAndStats(t *testing.T) {
	l, _ := setupLog(t)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	entries := []Entry{
		{AccessPointID: "GATE_1", PersonID: "p1", Direction: models.DirectionEntry, Result: models.ResultGranted, Timestamp: base},
		{AccessPointID: "GATE_1", PersonID: "p2", Direction: models.DirectionEntry, Result: models.ResultDenied, Timestamp: base.Add(time.Minute)},
		{AccessPointID: "GATE_2", PersonID: "p1", Direction: models.DirectionExit, Result: models.ResultGranted, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		_, err := l.Append(e)
		require.NoError(t, err)
	}

	t.Run("Filter by person", func(t *testing.T) {
		logs, total, err := l.Query(database.LogFilter{PersonID: "p1"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, logs, 2)
		// Newest first
		assert.True(t, logs[0].Seq > logs[1].Seq)
	})

	t.Run("Filter by result and point", func(t *testing.T) {
		_, total, err := l.Query(database.LogFilter{AccessPointID: "GATE_1", Result: models.ResultDenied})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("Pagination", func(t *testing.T) {
		logs, total, err := l.Query(database.LogFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, logs, 2)
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := l.Stats(base.Add(-time.Hour), base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, int64(2), stats.ByResult[models.ResultGranted])
		assert.Equal(t, int64(1), stats.ByDirection[models.DirectionExit])
	})
}
