package service

import (
	"github.com/jjesus1982/conecta-plus-sub001/internal/audit"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/registry"
	"go.uber.org/zap"
)

// Emergency audit reason prefixes.
const (
	ActionUnlockAll = "emergency_unlock_all"
	ActionLockdown  = "emergency_lockdown"
)

// EmergencyResult summarizes a batch operation. Points already flipped
// before a mid-batch fault stay flipped; every flip has its own audit
// entry, so the site state is reconstructable from the log.
type EmergencyResult struct {
	Action   string   `json:"action"`
	Affected []string `json:"affected"`
	Skipped  []string `json:"skipped"`
	Failed   []string `json:"failed"`
}

// EmergencyService batch-mutates access point state for site-wide
// emergencies.
type EmergencyService struct {
	registry    *registry.Registry
	auditLog    *audit.Log
	broadcaster *events.Broadcaster
	logger      *zap.Logger
}

// NewEmergencyService creates an emergency service.
func NewEmergencyService(reg *registry.Registry, auditLog *audit.Log, broadcaster *events.Broadcaster, logger *zap.Logger) *EmergencyService {
	return &EmergencyService{
		registry:    reg,
		auditLog:    auditLog,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// UnlockAll sets every access point to unlocked. One audit entry per
// affected point plus one aggregate entry.
func (s *EmergencyService) UnlockAll(reason, actorID string) *EmergencyResult {
	return s.applyAll(ActionUnlockAll, models.PointUnlocked, reason, actorID, nil)
}

// Lockdown sets every access point to locked. When exceptEmergencyExits
// is true, points flagged as emergency egress keep their current state.
func (s *EmergencyService) Lockdown(reason, actorID string, exceptEmergencyExits bool) *EmergencyResult {
	var skip func(*models.AccessPoint) bool
	if exceptEmergencyExits {
		skip = func(p *models.AccessPoint) bool { return p.EmergencyExit }
	}
	return s.applyAll(ActionLockdown, models.PointLocked, reason, actorID, skip)
}

// applyAll flips each point independently. Each flip is an atomic status
// transition on its own point; in-flight validations wait at most for a
// single status word.
func (s *EmergencyService) applyAll(
	action string,
	target models.AccessPointStatus,
	reason, actorID string,
	skip func(*models.AccessPoint) bool,
) *EmergencyResult {
	result := &EmergencyResult{Action: action}

	for _, point := range s.registry.List() {
		if skip != nil && skip(point) {
			result.Skipped = append(result.Skipped, point.ID)
			continue
		}

		change, err := s.registry.SetStatus(point.ID, target, reason, actorID)
		if err != nil {
			s.logger.Error("Emergency status flip failed",
				zap.String("action", action),
				zap.String("access_point_id", point.ID),
				zap.Error(err))
			result.Failed = append(result.Failed, point.ID)
			continue
		}
		result.Affected = append(result.Affected, point.ID)

		if _, err := s.auditLog.Append(audit.Entry{
			AccessPointID: point.ID,
			Reason:        action + ": " + reason,
			ActorID:       actorID,
		}); err != nil {
			s.logger.Error("Failed to audit emergency flip",
				zap.String("access_point_id", point.ID), zap.Error(err))
		}

		s.broadcaster.PointStatus(events.PointStatusPayload{
			AccessPointID: change.AccessPointID,
			From:          change.From,
			To:            change.To,
			Reason:        change.Reason,
			ActorID:       change.ActorID,
		})
	}

	// Aggregate entry summarizing the batch
	if _, err := s.auditLog.Append(audit.Entry{
		AccessPointID: models.WildcardPointID,
		Reason:        action + " completed: " + reason,
		ActorID:       actorID,
	}); err != nil {
		s.logger.Error("Failed to audit emergency summary",
			zap.String("action", action), zap.Error(err))
	}

	s.broadcaster.Emergency(events.EmergencyPayload{
		Action:   action,
		Reason:   reason,
		ActorID:  actorID,
		Affected: len(result.Affected),
		Skipped:  len(result.Skipped),
	})

	s.logger.Warn("Emergency operation applied",
		zap.String("action", action),
		zap.String("actor_id", actorID),
		zap.Int("affected", len(result.Affected)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)

	return result
}
