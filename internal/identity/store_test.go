package identity

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupStore(t *testing.T) (*Store, *database.Database) {
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

	s, err := NewStore(db, zap.NewNop())
	require.NoError(t, err)
	return s, db
}

func newResident(t *testing.T, s *Store, name string) *models.Person {
	p := &models.Person{
		Name:     name,
		Category: models.CategoryResident,
		Rules:    []models.AccessRule{{AccessPointIDs: []string{models.WildcardPointID}}},
	}
	require.NoError(t, s.CreatePerson(p))
	return p
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "ABC1234", NormalizePlate("abc-1234"))
	assert.Equal(t, "ABC1D23", NormalizePlate(" AbC 1d23 "))
	assert.Equal(t, "", NormalizePlate("---"))
}

func TestStorePersons(t *testing.T) {
	s, _ := setupStore(t)

	t.Run("Create assigns id and fetch returns a copy", func(t *testing.T) {
		p := newResident(t, s, "Maria")
		require.NotEmpty(t, p.ID)

		got, err := s.GetPerson(p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Maria", got.Name)

		// Mutating the copy must not leak into the store
		got.Name = "changed"
		again, err := s.GetPerson(p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Maria", again.Name)
	})

	t.Run("Unknown person is ErrNotFound", func(t *testing.T) {
		_, err := s.GetPerson("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SetBlocked round-trips and clears reason on unblock", func(t *testing.T) {
		p := newResident(t, s, "Joao")

		require.NoError(t, s.SetBlocked(p.ID, true, "lost card"))
		got, _ := s.GetPerson(p.ID)
		assert.True(t, got.Blocked)
		assert.Equal(t, "lost card", got.BlockReason)

		require.NoError(t, s.SetBlocked(p.ID, false, ""))
		got, _ = s.GetPerson(p.ID)
		assert.False(t, got.Blocked)
		assert.Empty(t, got.BlockReason)
	})

	t.Run("SetValidUntil closes the window", func(t *testing.T) {
		p := newResident(t, s, "Ana")
		now := time.Now().UTC()

		require.NoError(t, s.SetValidUntil(p.ID, now))
		got, _ := s.GetPerson(p.ID)
		require.True(t, got.ValidUntil.Valid)
		assert.WithinDuration(t, now, got.ValidUntil.Time, time.Second)
	})

	t.Run("UpdateProfile replaces descriptive fields only", func(t *testing.T) {
		p := newResident(t, s, "Clara")
		require.NoError(t, s.SetBlocked(p.ID, true, "pending docs"))

		until := time.Now().UTC().Add(24 * time.Hour)
		require.NoError(t, s.UpdateProfile(p.ID, ProfileUpdate{
			Name:       "Clara Souza",
			Unit:       "202-B",
			ValidUntil: &until,
		}))

		got, _ := s.GetPerson(p.ID)
		assert.Equal(t, "Clara Souza", got.Name)
		assert.Equal(t, "202-B", got.Unit)
		assert.True(t, got.Blocked, "block state is not touched by profile updates")

		assert.Error(t, s.UpdateProfile(p.ID, ProfileUpdate{}))
	})

	t.Run("UpdateRules replaces the rule set", func(t *testing.T) {
		p := newResident(t, s, "Rui")
		rules := []models.AccessRule{{AccessPointIDs: []string{"GATE_2"}}}

		require.NoError(t, s.UpdateRules(p.ID, rules))
		got, _ := s.GetPerson(p.ID)
		require.Len(t, got.Rules, 1)
		assert.Equal(t, []string{"GATE_2"}, got.Rules[0].AccessPointIDs)
	})
}

func TestStoreCredentials(t *testing.T) {
	s, _ := setupStore(t)
	alice := newResident(t, s, "Alice")
	bob := newResident(t, s, "Bob")

	t.Run("Enroll and resolve", func(t *testing.T) {
		cred, err := s.AddCredential(alice.ID, models.CredentialCard, "CARD-1")
		require.NoError(t, err)
		assert.True(t, cred.Enabled)

		p, credID, err := s.FindPersonByCredential(models.CredentialCard, "CARD-1")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, p.ID)
		assert.Equal(t, cred.ID, credID)
	})

	t.Run("Same key for another person is rejected, neither record changes", func(t *testing.T) {
		_, err := s.AddCredential(bob.ID, models.CredentialCard, "CARD-1")
		assert.ErrorIs(t, err, ErrDuplicateCredential)

		// Still resolves to Alice
		p, _, err := s.FindPersonByCredential(models.CredentialCard, "CARD-1")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, p.ID)

		// Bob gained no credential
		got, _ := s.GetPerson(bob.ID)
		assert.Empty(t, got.Credentials)
	})

	t.Run("Same value under a different type is fine", func(t *testing.T) {
		_, err := s.AddCredential(bob.ID, models.CredentialPIN, "CARD-1")
		assert.NoError(t, err)
	})

	t.Run("Disable frees the key", func(t *testing.T) {
		p, credID, err := s.FindPersonByCredential(models.CredentialCard, "CARD-1")
		require.NoError(t, err)
		require.NoError(t, s.DisableCredential(p.ID, credID))

		_, _, err = s.FindPersonByCredential(models.CredentialCard, "CARD-1")
		assert.ErrorIs(t, err, ErrNotFound)

		// Bob can now enroll it
		_, err = s.AddCredential(bob.ID, models.CredentialCard, "CARD-1")
		assert.NoError(t, err)
	})

	t.Run("Unsupported type is rejected", func(t *testing.T) {
		_, err := s.AddCredential(alice.ID, models.CredentialType("retina"), "x")
		assert.Error(t, err)
	})
}

func TestStoreVehicles(t *testing.T) {
	s, _ := setupStore(t)
	owner := newResident(t, s, "Carla")

	t.Run("AddVehicle normalizes the plate and enrolls a credential", func(t *testing.T) {
		v, err := s.AddVehicle(owner.ID, "abc-1234", true)
		require.NoError(t, err)
		assert.Equal(t, "ABC1234", v.Plate)

		// Both lookup paths resolve
		got, err := s.FindVehicle("ABC 1234")
		require.NoError(t, err)
		assert.Equal(t, v.ID, got.ID)

		p, _, err := s.FindPersonByCredential(models.CredentialPlate, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, p.ID)
	})

	t.Run("Duplicate plate is rejected", func(t *testing.T) {
		_, err := s.AddVehicle(owner.ID, "ABC1234", true)
		assert.ErrorIs(t, err, ErrDuplicateCredential)
	})

	t.Run("SetVehicleAuthorized flips the flag", func(t *testing.T) {
		require.NoError(t, s.SetVehicleAuthorized("abc-1234", false))
		v, err := s.FindVehicle("ABC1234")
		require.NoError(t, err)
		assert.False(t, v.Authorized)
	})

	t.Run("ListVehicles by owner", func(t *testing.T) {
		vehicles, err := s.ListVehicles(owner.ID)
		require.NoError(t, err)
		assert.Len(t, vehicles, 1)
	})
}

// A vehicle registration that fails partway must not leave the paired plate
// credential behind, and the owner must be able to retry with another plate.
func TestStoreAddVehicleRollsBackCredential(t *testing.T) {
	s, db := setupStore(t)
	owner := newResident(t, s, "Carla")

	// A vehicle row created behind the store's back trips the UNIQUE plate
	// constraint inside the registration transaction.
	require.NoError(t, db.CreateVehicle(&models.Vehicle{
		ID:         uuid.New().String(),
		Plate:      "QWE5678",
		OwnerID:    owner.ID,
		Authorized: true,
		CreatedAt:  time.Now().UTC(),
	}))

	_, err := s.AddVehicle(owner.ID, "QWE-5678", true)
	assert.ErrorIs(t, err, ErrDuplicateCredential)

	// The credential insert was rolled back: nothing resolves in memory and
	// nothing lingers in storage.
	_, _, err = s.FindPersonByCredential(models.CredentialPlate, "QWE5678")
	assert.ErrorIs(t, err, ErrNotFound)

	creds, err := db.ListCredentialsByPerson(owner.ID)
	require.NoError(t, err)
	assert.Empty(t, creds)

	got, err := s.GetPerson(owner.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Credentials)

	// The owner is not stuck: a fresh plate registers normally.
	v, err := s.AddVehicle(owner.ID, "RTY-9012", true)
	require.NoError(t, err)
	assert.Equal(t, "RTY9012", v.Plate)
}

// Concurrent reads of a person being blocked must never observe a torn
// record: blocked implies a reason, unblocked implies none.
func TestStoreConcurrentBlockReads(t *testing.T) {
	s, _ := setupStore(t)
	p := newResident(t, s, "Target")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = s.SetBlocked(p.ID, true, "sweep")
			_ = s.SetBlocked(p.ID, false, "")
		}
		close(stop)
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := s.GetPerson(p.ID)
				if err != nil {
					t.Error(err)
					return
				}
				if got.Blocked && got.BlockReason == "" {
					t.Error("observed blocked person without reason")
					return
				}
				if !got.Blocked && got.BlockReason != "" {
					t.Error("observed unblocked person with stale reason")
					return
				}
			}
		}()
	}

	wg.Wait()
}
