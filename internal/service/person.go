package service

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/audit"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/identity"
	"go.uber.org/zap"
)

// PersonService handles identity administration: persons, visitors,
// credentials, and vehicles. Every mutation is attributed to the acting
// administrative user.
type PersonService struct {
	identity    *identity.Store
	auditLog    *audit.Log
	broadcaster *events.Broadcaster
	logger      *zap.Logger
}

// NewPersonService creates a person service.
func NewPersonService(ids *identity.Store, auditLog *audit.Log, broadcaster *events.Broadcaster, logger *zap.Logger) *PersonService {
	return &PersonService{
		identity:    ids,
		auditLog:    auditLog,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// CreatePersonRequest represents a request to create a person
type CreatePersonRequest struct {
	Name       string
	Category   models.PersonCategory
	Unit       string
	Document   string
	Rules      []models.AccessRule
	ValidFrom  *time.Time
	ValidUntil *time.Time
	ActorID    string
}

// CreatePerson creates a new person
func (s *PersonService) CreatePerson(req *CreatePersonRequest) (*models.Person, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if req.Category == "" {
		req.Category = models.CategoryResident
	}

	p := &models.Person{
		Name:     req.Name,
		Category: req.Category,
		Unit:     req.Unit,
		Document: req.Document,
		Rules:    req.Rules,
	}
	if req.ValidFrom != nil {
		p.ValidFrom = sql.NullTime{Time: req.ValidFrom.UTC(), Valid: true}
	}
	if req.ValidUntil != nil {
		p.ValidUntil = sql.NullTime{Time: req.ValidUntil.UTC(), Valid: true}
	}

	if err := s.identity.CreatePerson(p); err != nil {
		return nil, err
	}

	s.logger.Info("Person created",
		zap.String("person_id", p.ID),
		zap.String("category", string(p.Category)),
		zap.String("actor_id", req.ActorID),
	)
	return p, nil
}

// CreateVisitor creates a short-lived person with a bounded validity
// window. ValidUntil is mandatory for visitors.
func (s *PersonService) CreateVisitor(req *CreatePersonRequest) (*models.Person, error) {
	if req.ValidUntil == nil {
		return nil, fmt.Errorf("visitors require a validity end")
	}
	req.Category = models.CategoryVisitor
	if req.ValidFrom == nil {
		now := time.Now().UTC()
		req.ValidFrom = &now
	}
	return s.CreatePerson(req)
}

// UpdatePersonRequest represents a request to update a person's profile
type UpdatePersonRequest struct {
	Name       string
	Unit       string
	Document   string
	ValidFrom  *time.Time
	ValidUntil *time.Time
	ActorID    string
}

// Update replaces a person's descriptive fields.
func (s *PersonService) Update(id string, req *UpdatePersonRequest) (*models.Person, error) {
	err := s.identity.UpdateProfile(id, identity.ProfileUpdate{
		Name:       req.Name,
		Unit:       req.Unit,
		Document:   req.Document,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Person updated",
		zap.String("person_id", id),
		zap.String("actor_id", req.ActorID),
	)
	return s.identity.GetPerson(id)
}

// GetPerson retrieves a person with their credentials and vehicles.
func (s *PersonService) GetPerson(id string) (*models.Person, error) {
	return s.identity.GetPerson(id)
}

// ListPersons returns a page of persons.
func (s *PersonService) ListPersons(limit, offset int) ([]*models.Person, error) {
	return s.identity.ListPersons(limit, offset)
}

// Block denies a person everywhere, regardless of rules, until unblocked.
func (s *PersonService) Block(id, reason, actorID string) error {
	if err := s.identity.SetBlocked(id, true, reason); err != nil {
		return err
	}
	s.recordAdmin(id, "person blocked: "+reason, actorID)
	return nil
}

// Unblock lifts a person's block.
func (s *PersonService) Unblock(id, actorID string) error {
	if err := s.identity.SetBlocked(id, false, ""); err != nil {
		return err
	}
	s.recordAdmin(id, "person unblocked", actorID)
	return nil
}

// UpdateRules replaces a person's access rules.
func (s *PersonService) UpdateRules(id string, rules []models.AccessRule, actorID string) error {
	if err := s.identity.UpdateRules(id, rules); err != nil {
		return err
	}
	s.logger.Info("Access rules updated",
		zap.String("person_id", id),
		zap.Int("rules", len(rules)),
		zap.String("actor_id", actorID),
	)
	return nil
}

// AddCredential enrolls a credential for a person.
func (s *PersonService) AddCredential(personID string, ctype models.CredentialType, value, actorID string) (*models.Credential, error) {
	cred, err := s.identity.AddCredential(personID, ctype, value)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Credential enrolled",
		zap.String("person_id", personID),
		zap.String("type", string(ctype)),
		zap.String("actor_id", actorID),
	)
	return cred, nil
}

// RemoveCredential revokes a credential. The record is disabled, not
// deleted, preserving audit linkage.
func (s *PersonService) RemoveCredential(personID, credentialID, actorID string) error {
	if err := s.identity.DisableCredential(personID, credentialID); err != nil {
		return err
	}
	s.logger.Info("Credential revoked",
		zap.String("person_id", personID),
		zap.String("credential_id", credentialID),
		zap.String("actor_id", actorID),
	)
	return nil
}

// Checkout ends a visitor's validity window now. The record is kept so
// logged entries stay linked to the visitor identity; the transition is
// terminal.
func (s *PersonService) Checkout(id, actorID string) (*models.Person, error) {
	p, err := s.identity.GetPerson(id)
	if err != nil {
		return nil, err
	}
	if p.Category != models.CategoryVisitor {
		return nil, fmt.Errorf("person %s is not a visitor", id)
	}

	if err := s.identity.SetValidUntil(id, time.Now().UTC()); err != nil {
		return nil, err
	}
	s.recordAdmin(id, "visitor checked out", actorID)

	return s.identity.GetPerson(id)
}

// AddVehicle registers a vehicle and its plate credential.
func (s *PersonService) AddVehicle(ownerID, plate string, authorized bool, actorID string) (*models.Vehicle, error) {
	v, err := s.identity.AddVehicle(ownerID, plate, authorized)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Vehicle registered",
		zap.String("owner_id", ownerID),
		zap.String("plate", v.Plate),
		zap.Bool("authorized", authorized),
		zap.String("actor_id", actorID),
	)
	return v, nil
}

// SetVehicleAuthorized flips a vehicle's authorized flag.
func (s *PersonService) SetVehicleAuthorized(plate string, authorized bool, actorID string) error {
	if err := s.identity.SetVehicleAuthorized(plate, authorized); err != nil {
		return err
	}
	s.logger.Info("Vehicle authorization changed",
		zap.String("plate", identity.NormalizePlate(plate)),
		zap.Bool("authorized", authorized),
		zap.String("actor_id", actorID),
	)
	return nil
}

// ListVehicles returns the vehicles registered to a person.
func (s *PersonService) ListVehicles(ownerID string) ([]*models.Vehicle, error) {
	return s.identity.ListVehicles(ownerID)
}

// recordAdmin writes an audit entry for an identity mutation that affects
// access decisions, keeping block and checkout transitions reconstructable
// from the same trail as the decisions they influence.
func (s *PersonService) recordAdmin(personID, reason, actorID string) {
	if _, err := s.auditLog.Append(audit.Entry{
		AccessPointID: models.WildcardPointID,
		PersonID:      personID,
		Reason:        reason,
		ActorID:       actorID,
	}); err != nil {
		s.logger.Error("Failed to audit identity mutation",
			zap.String("person_id", personID), zap.Error(err))
	}
}
