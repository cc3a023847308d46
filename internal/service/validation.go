// Package service orchestrates the engine's operations: validation of
// credential and plate events, emergency batch mutations, identity
// administration, and administrative users.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/audit"
	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/identity"
	"github.com/jjesus1982/conecta-plus-sub001/internal/policy"
	"github.com/jjesus1982/conecta-plus-sub001/internal/registry"
	"go.uber.org/zap"
)

// Decision reason strings on the validation fast path.
const (
	ReasonPointLocked      = "point locked"
	ReasonPointBypass      = "point in bypass mode"
	ReasonPointMaintenance = "point in maintenance"
	ReasonPointNotFound    = "point_not_found"
	ReasonNotRegistered    = "credential not registered"
	ReasonVehicleDenied    = "vehicle not authorized"
	ReasonAntiPassback     = "anti-passback violation"
	ReasonLookupTimeout    = "identity lookup timed out"
	ReasonStorageError     = "storage_error"
)

// ValidationRequest is the normalized event a vendor adapter submits.
type ValidationRequest struct {
	AccessPointID   string                `json:"access_point_id" binding:"required"`
	CredentialType  models.CredentialType `json:"credential_type" binding:"required"`
	CredentialValue string                `json:"credential_value" binding:"required"`
	Direction       models.Direction      `json:"direction" binding:"required"`
	Confidence      *float64              `json:"confidence,omitempty"`
	PhotoRef        string                `json:"photo,omitempty"`
	EventID         string                `json:"event_id"`
}

// PlateRequest is the normalized plate-read event.
type PlateRequest struct {
	AccessPointID string           `json:"access_point_id" binding:"required"`
	Plate         string           `json:"plate" binding:"required"`
	Direction     models.Direction `json:"direction" binding:"required"`
	Confidence    *float64         `json:"confidence,omitempty"`
	EventID       string           `json:"event_id"`
}

// Decision is what the adapter receives and acts on. AllowAccess is the
// actuation verdict: for granted it is always true, for denied always
// false, and for timeout/error it reflects the point's fail-open or
// fail-closed policy.
type Decision struct {
	Result      models.Result          `json:"result"`
	Reason      string                 `json:"reason"`
	AllowAccess bool                   `json:"allow_access"`
	Person      *models.PublicIdentity `json:"person,omitempty"`
	LogID       string                 `json:"log_id"`
}

// ValidationService is the single entry point for access decisions.
type ValidationService struct {
	identity    *identity.Store
	registry    *registry.Registry
	auditLog    *audit.Log
	broadcaster *events.Broadcaster
	logger      *zap.Logger

	timeout  time.Duration
	idem     *idempotencyCache
	passback *passbackTracker

	// now is swappable for deterministic tests
	now func() time.Time
}

// NewValidationService creates a validation service.
func NewValidationService(
	ids *identity.Store,
	reg *registry.Registry,
	auditLog *audit.Log,
	broadcaster *events.Broadcaster,
	cfg *config.Config,
	logger *zap.Logger,
) *ValidationService {
	return &ValidationService{
		identity:    ids,
		registry:    reg,
		auditLog:    auditLog,
		broadcaster: broadcaster,
		logger:      logger,
		timeout:     cfg.Validation.Timeout,
		idem:        newIdempotencyCache(cfg.Validation.IdempotencyTTL),
		passback:    newPassbackTracker(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ValidateCredential resolves a credential event to a decision. Exactly
// one audit entry is written per distinct event id.
func (s *ValidationService) ValidateCredential(ctx context.Context, req ValidationRequest) Decision {
	// Plate reads go through the vehicle registry no matter which endpoint
	// delivered them, so an unauthorized vehicle is denied on both surfaces.
	if req.CredentialType == models.CredentialPlate {
		return s.ValidatePlate(ctx, PlateRequest{
			AccessPointID: req.AccessPointID,
			Plate:         req.CredentialValue,
			Direction:     req.Direction,
			Confidence:    req.Confidence,
			EventID:       req.EventID,
		})
	}

	if prior, ok := s.replay(req.EventID); ok {
		return prior
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry := audit.Entry{
		AccessPointID:  req.AccessPointID,
		CredentialType: req.CredentialType,
		Direction:      req.Direction,
		Confidence:     req.Confidence,
		PhotoRef:       req.PhotoRef,
		EventID:        req.EventID,
	}

	if !req.CredentialType.Valid() {
		return s.finish(entry, Decision{
			Result: models.ResultError,
			Reason: fmt.Sprintf("unsupported credential type: %s", req.CredentialType),
		}, nil)
	}

	point, decision, done := s.resolvePoint(req.AccessPointID)
	if done {
		return s.finish(entry, decision, nil)
	}

	person, credentialID, err := s.lookupPerson(ctx, req.CredentialType, req.CredentialValue)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return s.finish(entry, Decision{
				Result: models.ResultDenied,
				Reason: ReasonNotRegistered,
			}, nil)
		}
		return s.finish(entry, s.faultDecision(point, err), nil)
	}
	entry.PersonID = person.ID

	decision = s.decide(person, point, req.Direction)
	if decision.Result == models.ResultGranted {
		s.identity.TouchCredential(credentialID, s.now())
	}
	return s.finish(entry, decision, person)
}

// ValidatePlate resolves a plate-read event to a decision. It mirrors the
// credential path but goes through the vehicle registry and additionally
// denies unauthorized vehicles.
func (s *ValidationService) ValidatePlate(ctx context.Context, req PlateRequest) Decision {
	if prior, ok := s.replay(req.EventID); ok {
		return prior
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	plate := identity.NormalizePlate(req.Plate)
	entry := audit.Entry{
		AccessPointID:  req.AccessPointID,
		CredentialType: models.CredentialPlate,
		Direction:      req.Direction,
		Confidence:     req.Confidence,
		Plate:          plate,
		EventID:        req.EventID,
	}

	point, decision, done := s.resolvePoint(req.AccessPointID)
	if done {
		return s.finish(entry, decision, nil)
	}

	vehicle, err := s.lookupVehicle(ctx, plate)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return s.finish(entry, Decision{
				Result: models.ResultDenied,
				Reason: ReasonNotRegistered,
			}, nil)
		}
		return s.finish(entry, s.faultDecision(point, err), nil)
	}

	person, err := s.identity.GetPerson(vehicle.OwnerID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return s.finish(entry, Decision{
				Result: models.ResultError,
				Reason: ReasonStorageError + ": vehicle owner missing",
			}, nil)
		}
		return s.finish(entry, s.faultDecision(point, err), nil)
	}
	entry.PersonID = person.ID

	if !vehicle.Authorized {
		d := Decision{Result: models.ResultDenied, Reason: ReasonVehicleDenied, Person: person.Public()}
		return s.finish(entry, d, person)
	}

	decision = s.decide(person, point, req.Direction)
	return s.finish(entry, decision, person)
}

// replay returns the decision previously produced for an event id, first
// from the in-memory cache and then from the audit log.
func (s *ValidationService) replay(eventID string) (Decision, bool) {
	if eventID == "" {
		return Decision{}, false
	}
	if d, ok := s.idem.get(eventID); ok {
		return d, true
	}

	rec, err := s.auditLog.FindByEventID(eventID)
	if err != nil {
		return Decision{}, false
	}

	d := Decision{
		Result:      rec.Result,
		Reason:      rec.Reason,
		AllowAccess: rec.Result == models.ResultGranted,
		LogID:       rec.ID,
	}
	if rec.PersonID.Valid {
		if p, perr := s.identity.GetPerson(rec.PersonID.String); perr == nil {
			d.Person = p.Public()
		}
	}
	s.idem.put(eventID, d)
	return d, true
}

// resolvePoint handles the status fast path. done is true when the
// decision is already terminal (missing point, locked, bypass,
// maintenance).
func (s *ValidationService) resolvePoint(id string) (*models.AccessPoint, Decision, bool) {
	point, err := s.registry.Get(id)
	if err != nil {
		// A missing point is an integration fault, not an access refusal
		return nil, Decision{Result: models.ResultError, Reason: ReasonPointNotFound}, true
	}

	switch point.Status {
	case models.PointLocked:
		return point, Decision{Result: models.ResultDenied, Reason: ReasonPointLocked}, true
	case models.PointUnlocked:
		// Explicit operational override; logged so bypass windows are auditable
		return point, Decision{Result: models.ResultGranted, Reason: ReasonPointBypass, AllowAccess: true}, true
	case models.PointMaintenance:
		return point, Decision{Result: models.ResultDenied, Reason: ReasonPointMaintenance}, true
	}

	return point, Decision{}, false
}

// decide runs the policy engine and anti-passback for an active point.
func (s *ValidationService) decide(person *models.Person, point *models.AccessPoint, dir models.Direction) Decision {
	res := policy.Evaluate(person, point.ID, s.now())
	if !res.Allowed {
		return Decision{Result: models.ResultDenied, Reason: res.Reason, Person: person.Public()}
	}

	if point.AntiPassback && !s.passback.allows(person.ID, dir) {
		return Decision{Result: models.ResultDenied, Reason: ReasonAntiPassback, Person: person.Public()}
	}

	if point.AntiPassback {
		s.passback.record(person.ID, dir)
	}

	return Decision{
		Result:      models.ResultGranted,
		Reason:      res.Reason,
		AllowAccess: true,
		Person:      person.Public(),
	}
}

// lookupPerson runs the identity lookup under the request deadline.
func (s *ValidationService) lookupPerson(ctx context.Context, ctype models.CredentialType, value string) (*models.Person, string, error) {
	type lookupResult struct {
		person       *models.Person
		credentialID string
		err          error
	}

	ch := make(chan lookupResult, 1)
	go func() {
		p, credID, err := s.identity.FindPersonByCredential(ctype, value)
		ch <- lookupResult{person: p, credentialID: credID, err: err}
	}()

	select {
	case res := <-ch:
		return res.person, res.credentialID, res.err
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// lookupVehicle runs the vehicle lookup under the request deadline.
func (s *ValidationService) lookupVehicle(ctx context.Context, plate string) (*models.Vehicle, error) {
	type lookupResult struct {
		vehicle *models.Vehicle
		err     error
	}

	ch := make(chan lookupResult, 1)
	go func() {
		v, err := s.identity.FindVehicle(plate)
		ch <- lookupResult{vehicle: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.vehicle, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// faultDecision maps a dependency failure to a timeout or error decision.
// The actuation verdict follows the point's fail policy: fail-closed by
// default, fail-open only honored on exit paths.
func (s *ValidationService) faultDecision(point *models.AccessPoint, err error) Decision {
	failOpen := point != nil && point.FailOpen &&
		(point.Direction == models.DirectionExit || point.Direction == models.DirectionBoth)

	d := Decision{AllowAccess: failOpen}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		d.Result = models.ResultTimeout
		d.Reason = ReasonLookupTimeout
	} else {
		d.Result = models.ResultError
		d.Reason = fmt.Sprintf("%s: %v", ReasonStorageError, err)
	}
	return d
}

// finish writes the single audit entry for the attempt, caches the
// decision under its event id, broadcasts it, and returns it.
func (s *ValidationService) finish(entry audit.Entry, d Decision, person *models.Person) Decision {
	if person != nil && d.Person == nil && d.Result != models.ResultError {
		d.Person = person.Public()
	}

	entry.Result = d.Result
	entry.Reason = d.Reason
	entry.Timestamp = s.now()

	rec, err := s.auditLog.Append(entry)
	if err != nil {
		// Decisions on a physical security path must not be lost because
		// the audit write raced a duplicate event id: surface the original.
		if entry.EventID != "" {
			if prior, ok := s.replay(entry.EventID); ok {
				return prior
			}
		}
		s.logger.Error("Failed to write audit entry",
			zap.String("access_point_id", entry.AccessPointID), zap.Error(err))
	} else {
		d.LogID = rec.ID
	}

	s.idem.put(entry.EventID, d)

	s.broadcaster.Decision(events.DecisionPayload{
		LogID:          d.LogID,
		AccessPointID:  entry.AccessPointID,
		PersonID:       entry.PersonID,
		CredentialType: entry.CredentialType,
		Direction:      entry.Direction,
		Result:         d.Result,
		Reason:         d.Reason,
	})

	return d
}
