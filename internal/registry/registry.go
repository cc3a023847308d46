// Package registry holds controller and access point records and their
// operational status. Point status reads and writes are atomic per point;
// the emergency controller flips many points but each flip is independent,
// so in-flight validations only ever wait for a single status word.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"go.uber.org/zap"
)

// ErrNotFound is returned for unknown access point or controller ids.
var ErrNotFound = errors.New("not found")

// StatusChange describes one attributable status transition, with enough
// metadata for the caller to produce a correct audit entry. The registry
// itself does not log.
type StatusChange struct {
	AccessPointID string
	From          models.AccessPointStatus
	To            models.AccessPointStatus
	Reason        string
	ActorID       string
	At            time.Time
}

// point wraps an access point record with its own lock so status flips on
// different points never contend.
type point struct {
	mu  sync.RWMutex
	rec models.AccessPoint
}

// Registry is the access point registry.
type Registry struct {
	db     *database.Database
	logger *zap.Logger

	mu     sync.RWMutex
	points map[string]*point
}

// New creates a registry and hydrates it from the database.
func New(db *database.Database, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		db:     db,
		logger: logger,
		points: make(map[string]*point),
	}

	points, err := db.ListAccessPoints()
	if err != nil {
		return nil, fmt.Errorf("failed to list access points: %w", err)
	}
	for _, p := range points {
		r.points[p.ID] = &point{rec: *p}
	}

	logger.Info("Access point registry hydrated", zap.Int("points", len(r.points)))
	return r, nil
}

// CreateAccessPoint provisions a new point.
func (r *Registry) CreateAccessPoint(p *models.AccessPoint) error {
	if p.Status == "" {
		p.Status = models.PointActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	if err := r.db.CreateAccessPoint(p); err != nil {
		return fmt.Errorf("failed to create access point: %w", err)
	}

	r.mu.Lock()
	r.points[p.ID] = &point{rec: *p}
	r.mu.Unlock()
	return nil
}

func (r *Registry) lookup(id string) (*point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.points[id]
	return p, ok
}

// Get returns a copy of an access point.
func (r *Registry) Get(id string) (*models.AccessPoint, error) {
	p, ok := r.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}

	p.mu.RLock()
	rec := p.rec
	p.mu.RUnlock()
	return &rec, nil
}

// List returns copies of every access point.
func (r *Registry) List() []*models.AccessPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.AccessPoint, 0, len(r.points))
	for _, p := range r.points {
		p.mu.RLock()
		rec := p.rec
		p.mu.RUnlock()
		out = append(out, &rec)
	}
	return out
}

// ListByController returns the points owned by a controller.
func (r *Registry) ListByController(controllerID string) []*models.AccessPoint {
	var out []*models.AccessPoint
	for _, p := range r.List() {
		if p.ControllerID == controllerID {
			out = append(out, p)
		}
	}
	return out
}

// SetStatus atomically flips a point's status. Any state may transition to
// any other; the returned StatusChange attributes the transition so the
// caller can write the audit entry.
func (r *Registry) SetStatus(id string, status models.AccessPointStatus, reason, actorID string) (*StatusChange, error) {
	p, ok := r.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	from := p.rec.Status
	if err := r.db.SetAccessPointStatus(id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to persist status: %w", err)
	}
	p.rec.Status = status

	return &StatusChange{
		AccessPointID: id,
		From:          from,
		To:            status,
		Reason:        reason,
		ActorID:       actorID,
		At:            time.Now().UTC(),
	}, nil
}

// Controller operations. Controllers are read rarely and mutated only by
// provisioning and the background health checker, so they go straight to
// the database.

// CreateController provisions a controller.
func (r *Registry) CreateController(c *models.Controller) error {
	if c.Status == "" {
		c.Status = models.ControllerOffline
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return r.db.CreateController(c)
}

// GetController retrieves a controller.
func (r *Registry) GetController(id string) (*models.Controller, error) {
	c, err := r.db.GetController(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListControllers retrieves all controllers.
func (r *Registry) ListControllers() ([]*models.Controller, error) {
	return r.db.ListControllers()
}

// SetControllerStatus records a controller health transition.
func (r *Registry) SetControllerStatus(id string, status models.ControllerStatus, seenAt *time.Time) error {
	err := r.db.SetControllerStatus(id, status, seenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// RetireController soft-retires a controller.
func (r *Registry) RetireController(id string) error {
	err := r.db.RetireController(id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
