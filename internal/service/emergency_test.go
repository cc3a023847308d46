package service

import (
	"context"
	"testing"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (e *testEnv) emergency(t *testing.T) *EmergencyService {
	t.Helper()
	return NewEmergencyService(
		e.registry, e.audit,
		events.NewBroadcaster(nil, zap.NewNop()),
		zap.NewNop(),
	)
}

func TestEmergencyUnlockAll(t *testing.T) {
	env := setupEnv(t)
	env.addController(t, "ctrl-1")
	env.addPoint(t, models.AccessPoint{ID: "GATE_1"})
	env.addPoint(t, models.AccessPoint{ID: "DOOR_1", Status: models.PointLocked})

	es := env.emergency(t)

	result := es.UnlockAll("fire alarm", "admin-1")
	assert.Equal(t, ActionUnlockAll, result.Action)
	assert.ElementsMatch(t, []string{"GATE_1", "DOOR_1"}, result.Affected)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Failed)

	for _, id := range result.Affected {
		p, err := env.registry.Get(id)
		require.NoError(t, err)
		assert.Equal(t, models.PointUnlocked, p.Status)
	}

	t.Run("One audit entry per point plus an aggregate", func(t *testing.T) {
		logs, total, err := env.audit.Query(database.LogFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		var aggregate int
		for _, rec := range logs {
			assert.Equal(t, models.Result(""), rec.Result, "administrative entries carry no decision result")
			assert.Equal(t, "admin-1", rec.ActorID.String)
			if rec.AccessPointID == models.WildcardPointID {
				aggregate++
				assert.Contains(t, rec.Reason, "fire alarm")
			}
		}
		assert.Equal(t, 1, aggregate)
	})
}

func TestEmergencyLockdown(t *testing.T) {
	env := setupEnv(t)
	env.addController(t, "ctrl-1")
	env.addPoint(t, models.AccessPoint{ID: "GATE_1"})
	env.addPoint(t, models.AccessPoint{ID: "STAIR_EXIT", Direction: models.DirectionExit, EmergencyExit: true})

	es := env.emergency(t)

	t.Run("Emergency exits are spared when asked", func(t *testing.T) {
		result := es.Lockdown("intruder reported", "admin-1", true)
		assert.Equal(t, []string{"GATE_1"}, result.Affected)
		assert.Equal(t, []string{"STAIR_EXIT"}, result.Skipped)

		locked, err := env.registry.Get("GATE_1")
		require.NoError(t, err)
		assert.Equal(t, models.PointLocked, locked.Status)

		spared, err := env.registry.Get("STAIR_EXIT")
		require.NoError(t, err)
		assert.Equal(t, models.PointActive, spared.Status)
	})

	t.Run("Full lockdown takes the exits too", func(t *testing.T) {
		result := es.Lockdown("evacuation over", "admin-1", false)
		assert.Len(t, result.Affected, 2)
		assert.Empty(t, result.Skipped)

		p, err := env.registry.Get("STAIR_EXIT")
		require.NoError(t, err)
		assert.Equal(t, models.PointLocked, p.Status)
	})
}

func TestEmergencyThenValidate(t *testing.T) {
	env := setupEnv(t)
	env.addController(t, "ctrl-1")
	env.addPoint(t, models.AccessPoint{ID: "GATE_1"})

	p := env.addResident(t, "Maria")
	env.enroll(t, p.ID, models.CredentialCard, "CARD-M")

	vs := env.validation(t)
	es := env.emergency(t)

	es.Lockdown("drill", "admin-1", false)

	d := vs.ValidateCredential(context.Background(), ValidationRequest{
		AccessPointID:   "GATE_1",
		CredentialType:  models.CredentialCard,
		CredentialValue: "CARD-M",
		Direction:       models.DirectionEntry,
	})
	assert.Equal(t, models.ResultDenied, d.Result)
	assert.Equal(t, ReasonPointLocked, d.Reason)
}
