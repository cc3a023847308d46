package health

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/identity"
	"github.com/jjesus1982/conecta-plus-sub001/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupChecker(t *testing.T) (*Checker, *registry.Registry, *identity.Store) {
	cfg := config.Default()
	cfg.Database.SQLite.Path = t.TempDir() + "/test.db"

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	ids, err := identity.NewStore(db, zap.NewNop())
	require.NoError(t, err)

	reg, err := registry.New(db, zap.NewNop())
	require.NoError(t, err)

	c := NewChecker(reg, ids, events.NewBroadcaster(nil, zap.NewNop()), cfg.Health, zap.NewNop())
	return c, reg, ids
}

func addController(t *testing.T, reg *registry.Registry, id string, status models.ControllerStatus, lastSeen time.Time) {
	t.Helper()
	require.NoError(t, reg.CreateController(&models.Controller{
		ID:      id,
		Vendor:  "hikvision",
		Address: "10.0.0.10",
		Status:  status,
	}))
	if !lastSeen.IsZero() {
		require.NoError(t, reg.SetControllerStatus(id, status, &lastSeen))
	}
}

func TestCheckControllers(t *testing.T) {
	c, reg, _ := setupChecker(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	stale := now.Add(-c.cfg.OfflineThreshold - time.Minute)
	fresh := now.Add(-time.Second)

	addController(t, reg, "ctrl-stale", models.ControllerOnline, stale)
	addController(t, reg, "ctrl-fresh", models.ControllerOnline, fresh)
	addController(t, reg, "ctrl-silent", models.ControllerOnline, time.Time{})
	addController(t, reg, "ctrl-offline", models.ControllerOffline, stale)

	retiredSeen := stale
	addController(t, reg, "ctrl-retired", models.ControllerOnline, retiredSeen)
	require.NoError(t, reg.RetireController("ctrl-retired"))

	c.CheckControllers()

	expect := map[string]models.ControllerStatus{
		"ctrl-stale":  models.ControllerOffline,
		"ctrl-fresh":  models.ControllerOnline,
		"ctrl-silent": models.ControllerOffline, // online but never seen
	}
	for id, want := range expect {
		ctrl, err := reg.GetController(id)
		require.NoError(t, err)
		assert.Equal(t, want, ctrl.Status, id)
	}

	t.Run("Already-offline controllers are left alone", func(t *testing.T) {
		ctrl, err := reg.GetController("ctrl-offline")
		require.NoError(t, err)
		assert.Equal(t, models.ControllerOffline, ctrl.Status)
	})
}

func TestSweepVisitors(t *testing.T) {
	c, _, ids := setupChecker(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	expired := &models.Person{
		Name:       "Expired Guest",
		Category:   models.CategoryVisitor,
		ValidUntil: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
	}
	require.NoError(t, ids.CreatePerson(expired))

	active := &models.Person{
		Name:       "Active Guest",
		Category:   models.CategoryVisitor,
		ValidUntil: sql.NullTime{Time: now.Add(time.Hour), Valid: true},
	}
	require.NoError(t, ids.CreatePerson(active))

	resident := &models.Person{
		Name:       "Resident",
		Category:   models.CategoryResident,
		ValidUntil: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
	}
	require.NoError(t, ids.CreatePerson(resident))

	c.SweepVisitors()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.True(t, c.expired[expired.ID])
	assert.False(t, c.expired[active.ID])
	assert.False(t, c.expired[resident.ID], "residents never enter the expiry set")
}

func TestSweepVisitorsAnnouncesOnce(t *testing.T) {
	c, _, ids := setupChecker(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	guest := &models.Person{
		Name:       "Guest",
		Category:   models.CategoryVisitor,
		ValidUntil: sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
	}
	require.NoError(t, ids.CreatePerson(guest))

	c.SweepVisitors()
	c.SweepVisitors()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.expired, 1)
}

func TestCheckerStartStop(t *testing.T) {
	c, _, _ := setupChecker(t)
	require.NoError(t, c.Start())
	c.Stop()
}
