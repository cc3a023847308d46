// Package health runs the background schedulers: the controller health
// checker and the visitor expiry sweeper. Both run off the validation path;
// a stalled checker never delays a decision.
package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/identity"
	"github.com/jjesus1982/conecta-plus-sub001/internal/registry"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Checker owns the cron scheduler for both background jobs.
type Checker struct {
	registry    *registry.Registry
	identity    *identity.Store
	broadcaster *events.Broadcaster
	logger      *zap.Logger
	cfg         config.HealthConfig

	cron *cron.Cron

	mu      sync.Mutex
	expired map[string]bool
	now     func() time.Time
}

// NewChecker creates a health checker. Start must be called to schedule
// the jobs.
func NewChecker(reg *registry.Registry, ids *identity.Store, broadcaster *events.Broadcaster, cfg config.HealthConfig, logger *zap.Logger) *Checker {
	return &Checker{
		registry:    reg,
		identity:    ids,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg,
		cron:        cron.New(),
		expired:     make(map[string]bool),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the controller check and visitor sweep.
func (c *Checker) Start() error {
	if _, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.cfg.CheckInterval), c.CheckControllers); err != nil {
		return fmt.Errorf("failed to schedule controller check: %w", err)
	}
	if _, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.cfg.SweepInterval), c.SweepVisitors); err != nil {
		return fmt.Errorf("failed to schedule visitor sweep: %w", err)
	}
	c.cron.Start()
	c.logger.Info("Health schedulers started",
		zap.Duration("check_interval", c.cfg.CheckInterval),
		zap.Duration("sweep_interval", c.cfg.SweepInterval),
	)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (c *Checker) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// CheckControllers marks controllers offline when their last heartbeat is
// older than the configured threshold, and broadcasts each transition.
func (c *Checker) CheckControllers() {
	controllers, err := c.registry.ListControllers()
	if err != nil {
		c.logger.Error("Controller health check failed to list", zap.Error(err))
		return
	}

	cutoff := c.now().Add(-c.cfg.OfflineThreshold)
	for _, ctrl := range controllers {
		if ctrl.Retired || ctrl.Status != models.ControllerOnline {
			continue
		}
		if ctrl.LastSeen.Valid && ctrl.LastSeen.Time.After(cutoff) {
			continue
		}

		if err := c.registry.SetControllerStatus(ctrl.ID, models.ControllerOffline, nil); err != nil {
			c.logger.Error("Failed to mark controller offline",
				zap.String("controller_id", ctrl.ID), zap.Error(err))
			continue
		}

		c.logger.Warn("Controller offline",
			zap.String("controller_id", ctrl.ID),
			zap.String("vendor", ctrl.Vendor),
			zap.Time("last_seen", ctrl.LastSeen.Time),
		)
		c.broadcaster.ControllerHealth(events.ControllerHealthPayload{
			ControllerID: ctrl.ID,
			Status:       models.ControllerOffline,
			LastSeen:     ctrl.LastSeen.Time,
		})
	}
}

// SweepVisitors announces visitors whose validity window has closed. Each
// visitor is announced once; the policy engine already denies them, the
// sweep only drives dashboards.
func (c *Checker) SweepVisitors() {
	now := c.now()
	for _, p := range c.identity.AllPersons() {
		if p.Category != models.CategoryVisitor {
			continue
		}
		if !p.ValidUntil.Valid || p.ValidUntil.Time.After(now) {
			continue
		}

		c.mu.Lock()
		seen := c.expired[p.ID]
		c.expired[p.ID] = true
		c.mu.Unlock()
		if seen {
			continue
		}

		c.logger.Info("Visitor expired",
			zap.String("person_id", p.ID),
			zap.Time("valid_until", p.ValidUntil.Time),
		)
		c.broadcaster.VisitorExpired(events.VisitorExpiredPayload{
			PersonID:   p.ID,
			Name:       p.Name,
			ValidUntil: p.ValidUntil.Time,
		})
	}
}
