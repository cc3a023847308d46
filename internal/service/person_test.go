package service

import (
	"testing"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (e *testEnv) persons(t *testing.T) *PersonService {
	t.Helper()
	return NewPersonService(
		e.identity, e.audit,
		events.NewBroadcaster(nil, zap.NewNop()),
		zap.NewNop(),
	)
}

func TestPersonServiceCreate(t *testing.T) {
	env := setupEnv(t)
	ps := env.persons(t)

	t.Run("Defaults to resident", func(t *testing.T) {
		p, err := ps.CreatePerson(&CreatePersonRequest{Name: "Maria", Unit: "101-A", ActorID: "admin-1"})
		require.NoError(t, err)
		assert.Equal(t, models.CategoryResident, p.Category)
		assert.NotEmpty(t, p.ID)
	})

	t.Run("Name is required", func(t *testing.T) {
		_, err := ps.CreatePerson(&CreatePersonRequest{ActorID: "admin-1"})
		assert.Error(t, err)
	})

	t.Run("Visitor requires a validity end", func(t *testing.T) {
		_, err := ps.CreateVisitor(&CreatePersonRequest{Name: "Guest", ActorID: "admin-1"})
		assert.Error(t, err)
	})

	t.Run("Visitor category is forced and the window opens now", func(t *testing.T) {
		until := time.Now().UTC().Add(2 * time.Hour)
		p, err := ps.CreateVisitor(&CreatePersonRequest{
			Name:       "Guest",
			Category:   models.CategoryResident, // ignored
			ValidUntil: &until,
			ActorID:    "admin-1",
		})
		require.NoError(t, err)
		assert.Equal(t, models.CategoryVisitor, p.Category)
		require.True(t, p.ValidFrom.Valid)
		assert.WithinDuration(t, time.Now().UTC(), p.ValidFrom.Time, 2*time.Second)
	})
}

func TestPersonServiceUpdate(t *testing.T) {
	env := setupEnv(t)
	ps := env.persons(t)

	p, err := ps.CreatePerson(&CreatePersonRequest{Name: "Maria", Unit: "101-A", ActorID: "admin-1"})
	require.NoError(t, err)

	got, err := ps.Update(p.ID, &UpdatePersonRequest{Name: "Maria Silva", Unit: "101-B", ActorID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", got.Name)
	assert.Equal(t, "101-B", got.Unit)

	_, err = ps.Update("missing", &UpdatePersonRequest{Name: "X", ActorID: "admin-1"})
	assert.Error(t, err)
}

func TestPersonServiceBlock(t *testing.T) {
	env := setupEnv(t)
	ps := env.persons(t)

	p, err := ps.CreatePerson(&CreatePersonRequest{Name: "Joao", ActorID: "admin-1"})
	require.NoError(t, err)

	require.NoError(t, ps.Block(p.ID, "lost card", "admin-1"))
	got, err := ps.GetPerson(p.ID)
	require.NoError(t, err)
	assert.True(t, got.Blocked)
	assert.Equal(t, "lost card", got.BlockReason)

	require.NoError(t, ps.Unblock(p.ID, "admin-1"))
	got, err = ps.GetPerson(p.ID)
	require.NoError(t, err)
	assert.False(t, got.Blocked)

	t.Run("Block and unblock leave an audit trail", func(t *testing.T) {
		logs, total, err := env.audit.Query(database.LogFilter{PersonID: p.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, rec := range logs {
			assert.Equal(t, models.WildcardPointID, rec.AccessPointID)
			assert.Equal(t, "admin-1", rec.ActorID.String)
			assert.Equal(t, models.Result(""), rec.Result)
		}
	})
}

func TestPersonServiceCheckout(t *testing.T) {
	env := setupEnv(t)
	ps := env.persons(t)

	until := time.Now().UTC().Add(3 * time.Hour)
	visitor, err := ps.CreateVisitor(&CreatePersonRequest{Name: "Guest", ValidUntil: &until, ActorID: "admin-1"})
	require.NoError(t, err)

	t.Run("Checkout closes the window immediately", func(t *testing.T) {
		out, err := ps.Checkout(visitor.ID, "admin-1")
		require.NoError(t, err)
		require.True(t, out.ValidUntil.Valid)
		assert.WithinDuration(t, time.Now().UTC(), out.ValidUntil.Time, 2*time.Second)
	})

	t.Run("Checkout of a non-visitor is rejected", func(t *testing.T) {
		resident, err := ps.CreatePerson(&CreatePersonRequest{Name: "Maria", ActorID: "admin-1"})
		require.NoError(t, err)

		_, err = ps.Checkout(resident.ID, "admin-1")
		assert.Error(t, err)
	})
}

func TestPersonServiceVehicles(t *testing.T) {
	env := setupEnv(t)
	ps := env.persons(t)

	owner, err := ps.CreatePerson(&CreatePersonRequest{Name: "Carla", ActorID: "admin-1"})
	require.NoError(t, err)

	v, err := ps.AddVehicle(owner.ID, "bra-2e19", true, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "BRA2E19", v.Plate)

	require.NoError(t, ps.SetVehicleAuthorized("BRA2E19", false, "admin-1"))

	vehicles, err := ps.ListVehicles(owner.ID)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.False(t, vehicles[0].Authorized)
}
