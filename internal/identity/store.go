// Package identity implements the identity store: persons, credentials,
// and vehicles, backed by the database and fronted by in-memory indexes so
// credential and plate lookups on the validation path are O(1). Mutations
// of a person and validations of that same person serialize on a per-person
// lock; unrelated persons never contend.
package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a person, credential, or vehicle does
	// not exist. It is an integration fault, not an access denial.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCredential is returned when enabling a (type, value)
	// pair already enabled for another person. The write is rejected
	// before it can affect validation.
	ErrDuplicateCredential = errors.New("duplicate_credential")

	// ErrCredentialCollision indicates the enabled-credential uniqueness
	// invariant is already violated in storage. Validation must surface
	// this as a data-integrity fault rather than silently pick a person.
	ErrCredentialCollision = errors.New("credential collision: multiple enabled matches")
)

var nonPlateChars = regexp.MustCompile(`[^A-Z0-9]`)

// NormalizePlate uppercases a plate and strips every non-alphanumeric
// character so both validation paths resolve the same key.
func NormalizePlate(plate string) string {
	return nonPlateChars.ReplaceAllString(strings.ToUpper(plate), "")
}

type credKey struct {
	Type  models.CredentialType
	Value string
}

type credRef struct {
	PersonID     string
	CredentialID string
}

// Store is the identity store.
type Store struct {
	db     *database.Database
	logger *zap.Logger

	mu      sync.RWMutex
	persons map[string]*models.Person
	creds   map[credKey]credRef
	plates  map[string]*models.Vehicle

	locks *personLocks
}

// NewStore creates an identity store and hydrates its indexes from the
// database.
func NewStore(db *database.Database, logger *zap.Logger) (*Store, error) {
	s := &Store{
		db:      db,
		logger:  logger,
		persons: make(map[string]*models.Person),
		creds:   make(map[credKey]credRef),
		plates:  make(map[string]*models.Vehicle),
		locks:   newPersonLocks(),
	}
	if err := s.hydrate(); err != nil {
		return nil, fmt.Errorf("failed to hydrate identity store: %w", err)
	}
	return s, nil
}

// hydrate loads persons, enabled credentials, and vehicles into the
// in-memory indexes. A pre-existing enabled (type, value) collision is a
// data-integrity fault and refuses startup.
func (s *Store) hydrate() error {
	persons, err := s.db.ListPersons(1<<31-1, 0)
	if err != nil {
		return fmt.Errorf("failed to list persons: %w", err)
	}
	for _, p := range persons {
		s.persons[p.ID] = p
	}

	creds, err := s.db.ListEnabledCredentials()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}
	for _, c := range creds {
		key := credKey{Type: c.Type, Value: c.Value}
		if prior, ok := s.creds[key]; ok && prior.PersonID != c.PersonID {
			return fmt.Errorf("%w: type=%s persons=%s,%s", ErrCredentialCollision, c.Type, prior.PersonID, c.PersonID)
		}
		s.creds[key] = credRef{PersonID: c.PersonID, CredentialID: c.ID}
		if p, ok := s.persons[c.PersonID]; ok {
			p.Credentials = append(p.Credentials, c)
		}
	}

	vehicles, err := s.db.ListVehicles()
	if err != nil {
		return fmt.Errorf("failed to list vehicles: %w", err)
	}
	for _, v := range vehicles {
		s.plates[v.Plate] = v
	}

	s.logger.Info("Identity store hydrated",
		zap.Int("persons", len(s.persons)),
		zap.Int("credentials", len(s.creds)),
		zap.Int("vehicles", len(s.plates)),
	)
	return nil
}

// snapshot returns a copy of a person safe to hand to callers. Rules and
// credentials are cloned so a later mutation cannot tear a decision in
// flight.
func snapshot(p *models.Person) *models.Person {
	cp := *p
	cp.Rules = append([]models.AccessRule(nil), p.Rules...)
	cp.Credentials = append([]models.Credential(nil), p.Credentials...)
	return &cp
}

// CreatePerson persists a new person and registers it in the indexes.
func (s *Store) CreatePerson(p *models.Person) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Rules == nil {
		p.Rules = []models.AccessRule{}
	}

	if err := s.db.CreatePerson(p); err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}

	s.mu.Lock()
	s.persons[p.ID] = snapshot(p)
	s.mu.Unlock()
	return nil
}

// GetPerson returns a consistent copy of a person. The per-person read
// lock guarantees the copy is not torn by a concurrent block/unblock.
func (s *Store) GetPerson(id string) (*models.Person, error) {
	lock := s.locks.get(id)
	lock.RLock()
	defer lock.RUnlock()

	s.mu.RLock()
	p, ok := s.persons[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(p), nil
}

// ListPersons returns a page of persons, newest first.
func (s *Store) ListPersons(limit, offset int) ([]*models.Person, error) {
	return s.db.ListPersons(limit, offset)
}

// AllPersons returns a copy of every person from the in-memory index.
// Used by background sweeps that must see the whole population without
// paging through storage.
func (s *Store) AllPersons() []*models.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, snapshot(p))
	}
	return out
}

// UpdateRules replaces a person's access rules.
func (s *Store) UpdateRules(id string, rules []models.AccessRule) error {
	return s.mutatePerson(id, func(p *models.Person) {
		p.Rules = append([]models.AccessRule(nil), rules...)
	})
}

// ProfileUpdate carries the mutable descriptive fields of a person.
type ProfileUpdate struct {
	Name       string
	Unit       string
	Document   string
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// UpdateProfile replaces a person's descriptive fields. Category, block
// state, rules, and credentials have their own operations.
func (s *Store) UpdateProfile(id string, u ProfileUpdate) error {
	if u.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.mutatePerson(id, func(p *models.Person) {
		p.Name = u.Name
		p.Unit = u.Unit
		p.Document = u.Document
		if u.ValidFrom != nil {
			p.ValidFrom = sql.NullTime{Time: u.ValidFrom.UTC(), Valid: true}
		}
		if u.ValidUntil != nil {
			p.ValidUntil = sql.NullTime{Time: u.ValidUntil.UTC(), Valid: true}
		}
	})
}

// SetBlocked sets or clears a person's block flag and reason. A blocked
// person is denied everywhere regardless of rules.
func (s *Store) SetBlocked(id string, blocked bool, reason string) error {
	return s.mutatePerson(id, func(p *models.Person) {
		p.Blocked = blocked
		p.BlockReason = reason
		if !blocked {
			p.BlockReason = ""
		}
	})
}

// SetValidUntil moves a person's validity end. Visitor checkout is
// SetValidUntil(id, now): the record stays, so the audit trail keeps its
// linkage to the visitor identity.
func (s *Store) SetValidUntil(id string, until time.Time) error {
	return s.mutatePerson(id, func(p *models.Person) {
		p.ValidUntil = sql.NullTime{Time: until, Valid: true}
	})
}

// mutatePerson applies fn to a person under its write lock and persists
// the result. The in-memory record is only replaced after the database
// accepts the write, so a failed write never leaves a phantom state.
func (s *Store) mutatePerson(id string, fn func(*models.Person)) error {
	lock := s.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	p, ok := s.persons[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	updated := snapshot(p)
	fn(updated)

	if err := s.db.UpdatePerson(updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update person: %w", err)
	}

	s.mu.Lock()
	s.persons[id] = updated
	s.mu.Unlock()
	return nil
}

// AddCredential enrolls a credential for a person. Enabling a (type, value)
// pair already enabled for a different person fails with
// ErrDuplicateCredential and mutates neither record.
func (s *Store) AddCredential(personID string, ctype models.CredentialType, value string) (*models.Credential, error) {
	if !ctype.Valid() {
		return nil, fmt.Errorf("unsupported credential type: %s", ctype)
	}
	if ctype == models.CredentialPlate {
		value = NormalizePlate(value)
	}

	lock := s.locks.get(personID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.persons[personID]
	if !ok {
		return nil, ErrNotFound
	}

	key := credKey{Type: ctype, Value: value}
	if ref, exists := s.creds[key]; exists {
		if ref.PersonID == personID {
			return nil, fmt.Errorf("%w: already enrolled for this person", ErrDuplicateCredential)
		}
		return nil, ErrDuplicateCredential
	}

	cred := &models.Credential{
		ID:       uuid.New().String(),
		PersonID: personID,
		Type:     ctype,
		Value:    value,
		Enabled:  true,
		AddedAt:  time.Now().UTC(),
	}

	if err := s.db.CreateCredential(cred); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateCredential
		}
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	s.creds[key] = credRef{PersonID: personID, CredentialID: cred.ID}
	p.Credentials = append(p.Credentials, *cred)
	return cred, nil
}

// DisableCredential revokes a credential. The record is kept for audit;
// only the enabled flag and the index entry change.
func (s *Store) DisableCredential(personID, credentialID string) error {
	lock := s.locks.get(personID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.persons[personID]
	if !ok {
		return ErrNotFound
	}

	for i := range p.Credentials {
		if p.Credentials[i].ID != credentialID {
			continue
		}
		if err := s.db.SetCredentialEnabled(credentialID, false); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to disable credential: %w", err)
		}
		p.Credentials[i].Enabled = false
		delete(s.creds, credKey{Type: p.Credentials[i].Type, Value: p.Credentials[i].Value})
		return nil
	}

	return ErrNotFound
}

// FindPersonByCredential resolves an enabled (type, value) pair to its
// person. The returned person is a consistent snapshot taken under the
// per-person read lock.
func (s *Store) FindPersonByCredential(ctype models.CredentialType, value string) (*models.Person, string, error) {
	if ctype == models.CredentialPlate {
		value = NormalizePlate(value)
	}

	s.mu.RLock()
	ref, ok := s.creds[credKey{Type: ctype, Value: value}]
	s.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}

	p, err := s.GetPerson(ref.PersonID)
	if err != nil {
		return nil, "", err
	}
	return p, ref.CredentialID, nil
}

// TouchCredential records a successful use. Best effort, off the decision
// path; a failed write is logged and dropped.
func (s *Store) TouchCredential(credentialID string, at time.Time) {
	if err := s.db.TouchCredentialLastUsed(credentialID, at); err != nil {
		s.logger.Warn("Failed to record credential use",
			zap.String("credential_id", credentialID), zap.Error(err))
	}
}

// AddVehicle registers a vehicle and enrolls a plate credential for its
// owner so the credential and plate validation paths stay consistent.
func (s *Store) AddVehicle(ownerID, plate string, authorized bool) (*models.Vehicle, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, fmt.Errorf("plate is required")
	}

	lock := s.locks.get(ownerID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.persons[ownerID]
	if !ok {
		return nil, ErrNotFound
	}

	key := credKey{Type: models.CredentialPlate, Value: plate}
	if _, exists := s.creds[key]; exists {
		return nil, fmt.Errorf("%w: plate %s already registered", ErrDuplicateCredential, plate)
	}
	if _, exists := s.plates[plate]; exists {
		return nil, fmt.Errorf("%w: plate %s already registered", ErrDuplicateCredential, plate)
	}

	now := time.Now().UTC()
	v := &models.Vehicle{
		ID:         uuid.New().String(),
		Plate:      plate,
		OwnerID:    ownerID,
		Authorized: authorized,
		CreatedAt:  now,
	}
	cred := &models.Credential{
		ID:       uuid.New().String(),
		PersonID: ownerID,
		Type:     models.CredentialPlate,
		Value:    plate,
		Enabled:  true,
		AddedAt:  now,
	}

	// One transaction: the vehicle and its plate credential exist together
	// or not at all. A failed insert leaves no stray enabled credential to
	// wedge a retry on duplicate_credential.
	if err := s.db.CreateVehicleWithCredential(v, cred); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateCredential
		}
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}

	s.creds[key] = credRef{PersonID: ownerID, CredentialID: cred.ID}
	p.Credentials = append(p.Credentials, *cred)
	s.plates[plate] = v
	return v, nil
}

// FindVehicle resolves a plate to its vehicle.
func (s *Store) FindVehicle(plate string) (*models.Vehicle, error) {
	plate = NormalizePlate(plate)

	s.mu.RLock()
	v, ok := s.plates[plate]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

// SetVehicleAuthorized flips a vehicle's authorized flag.
func (s *Store) SetVehicleAuthorized(plate string, authorized bool) error {
	plate = NormalizePlate(plate)

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.plates[plate]
	if !ok {
		return ErrNotFound
	}
	if err := s.db.SetVehicleAuthorized(v.ID, authorized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	v.Authorized = authorized
	return nil
}

// ListVehicles returns the vehicles registered to a person.
func (s *Store) ListVehicles(ownerID string) ([]*models.Vehicle, error) {
	return s.db.ListVehiclesByOwner(ownerID)
}
