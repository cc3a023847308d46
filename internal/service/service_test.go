package service

import (
	"testing"

	"github.com/jjesus1982/conecta-plus-sub001/internal/audit"
	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/identity"
	"github.com/jjesus1982/conecta-plus-sub001/internal/registry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEnv wires real components over a temp SQLite database.
type testEnv struct {
	cfg      *config.Config
	db       *database.Database
	identity *identity.Store
	registry *registry.Registry
	audit    *audit.Log
}

func setupEnv(t *testing.T) *testEnv {
	cfg := config.Default()
	cfg.Database.SQLite.Path = t.TempDir() + "/test.db"
	cfg.JWT.Secret = "test-secret-12345"

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	ids, err := identity.NewStore(db, zap.NewNop())
	require.NoError(t, err)

	reg, err := registry.New(db, zap.NewNop())
	require.NoError(t, err)

	auditLog, err := audit.New(db, zap.NewNop())
	require.NoError(t, err)

	return &testEnv{
		cfg:      cfg,
		db:       db,
		identity: ids,
		registry: reg,
		audit:    auditLog,
	}
}

func (e *testEnv) validation(t *testing.T) *ValidationService {
	t.Helper()
	return NewValidationService(
		e.identity, e.registry, e.audit,
		events.NewBroadcaster(nil, zap.NewNop()),
		e.cfg, zap.NewNop(),
	)
}

func (e *testEnv) addController(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.registry.CreateController(&models.Controller{
		ID:      id,
		Vendor:  "hikvision",
		Address: "10.0.0.10",
		Status:  models.ControllerOnline,
	}))
}

func (e *testEnv) addPoint(t *testing.T, p models.AccessPoint) {
	t.Helper()
	if p.Kind == "" {
		p.Kind = models.KindDoor
	}
	if p.ControllerID == "" {
		p.ControllerID = "ctrl-1"
	}
	if p.Direction == "" {
		p.Direction = models.DirectionEntry
	}
	if p.Status == "" {
		p.Status = models.PointActive
	}
	require.NoError(t, e.registry.CreateAccessPoint(&p))
}

func (e *testEnv) addResident(t *testing.T, name string, rules ...models.AccessRule) *models.Person {
	t.Helper()
	if rules == nil {
		rules = []models.AccessRule{{AccessPointIDs: []string{models.WildcardPointID}}}
	}
	p := &models.Person{
		Name:     name,
		Category: models.CategoryResident,
		Rules:    rules,
	}
	require.NoError(t, e.identity.CreatePerson(p))
	return p
}

func (e *testEnv) enroll(t *testing.T, personID string, ctype models.CredentialType, value string) {
	t.Helper()
	_, err := e.identity.AddCredential(personID, ctype, value)
	require.NoError(t, err)
}

func (e *testEnv) countLogs(t *testing.T, f database.LogFilter) int64 {
	t.Helper()
	_, total, err := e.audit.Query(f)
	require.NoError(t, err)
	return total
}
