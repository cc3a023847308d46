package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
)

// Person operations

// CreatePerson creates a new person record
func (d *Database) CreatePerson(p *models.Person) error {
	rulesJSON, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	query := d.placeholders(`INSERT INTO persons
	          (id, name, category, unit, document, rules_json, valid_from, valid_until,
	           blocked, block_reason, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = d.db.Exec(query,
		p.ID, p.Name, p.Category, p.Unit, p.Document, string(rulesJSON),
		p.ValidFrom, p.ValidUntil, p.Blocked, p.BlockReason, p.CreatedAt,
	)
	return err
}

// GetPerson retrieves a person by ID
func (d *Database) GetPerson(id string) (*models.Person, error) {
	query := d.placeholders(`SELECT id, name, category, unit, document, rules_json,
	                 valid_from, valid_until, blocked, block_reason, created_at
	          FROM persons WHERE id = ?`)

	var p models.Person
	var rulesJSON string
	err := d.db.QueryRow(query, id).Scan(
		&p.ID, &p.Name, &p.Category, &p.Unit, &p.Document, &rulesJSON,
		&p.ValidFrom, &p.ValidUntil, &p.Blocked, &p.BlockReason, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rulesJSON), &p.Rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules for person %s: %w", id, err)
	}
	return &p, nil
}

// UpdatePerson updates a person's mutable fields (name, category, unit,
// document, rules, validity window, block state)
func (d *Database) UpdatePerson(p *models.Person) error {
	rulesJSON, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	query := d.placeholders(`UPDATE persons SET
	          name = ?, category = ?, unit = ?, document = ?, rules_json = ?,
	          valid_from = ?, valid_until = ?, blocked = ?, block_reason = ?
	          WHERE id = ?`)

	res, err := d.db.Exec(query,
		p.Name, p.Category, p.Unit, p.Document, string(rulesJSON),
		p.ValidFrom, p.ValidUntil, p.Blocked, p.BlockReason, p.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListPersons retrieves persons ordered by creation time, newest first
func (d *Database) ListPersons(limit, offset int) ([]*models.Person, error) {
	query := d.placeholders(`SELECT id, name, category, unit, document, rules_json,
	                 valid_from, valid_until, blocked, block_reason, created_at
	          FROM persons ORDER BY created_at DESC LIMIT ? OFFSET ?`)

	rows, err := d.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []*models.Person
	for rows.Next() {
		var p models.Person
		var rulesJSON string
		err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.Unit, &p.Document, &rulesJSON,
			&p.ValidFrom, &p.ValidUntil, &p.Blocked, &p.BlockReason, &p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rulesJSON), &p.Rules); err != nil {
			return nil, fmt.Errorf("failed to decode rules for person %s: %w", p.ID, err)
		}
		persons = append(persons, &p)
	}

	return persons, rows.Err()
}

// Credential operations

// CreateCredential creates a new credential. The partial unique index on
// (type, value) rejects a second enabled credential with the same key.
func (d *Database) CreateCredential(c *models.Credential) error {
	query := d.placeholders(`INSERT INTO credentials
	          (id, person_id, type, value, enabled, added_at, last_used)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := d.db.Exec(query,
		c.ID, c.PersonID, c.Type, c.Value, c.Enabled, c.AddedAt, c.LastUsed,
	)
	return err
}

// ListCredentialsByPerson retrieves all credentials for a person
func (d *Database) ListCredentialsByPerson(personID string) ([]models.Credential, error) {
	query := d.placeholders(`SELECT id, person_id, type, value, enabled, added_at, last_used
	          FROM credentials WHERE person_id = ? ORDER BY added_at`)

	return d.queryCredentials(query, personID)
}

// ListEnabledCredentials retrieves every enabled credential. Used to
// hydrate the in-memory credential index at startup.
func (d *Database) ListEnabledCredentials() ([]models.Credential, error) {
	query := `SELECT id, person_id, type, value, enabled, added_at, last_used
	          FROM credentials WHERE enabled = true ORDER BY added_at`
	if d.dbType == "sqlite" {
		query = `SELECT id, person_id, type, value, enabled, added_at, last_used
	          FROM credentials WHERE enabled = 1 ORDER BY added_at`
	}

	return d.queryCredentials(query)
}

func (d *Database) queryCredentials(query string, args ...any) ([]models.Credential, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		var c models.Credential
		err := rows.Scan(&c.ID, &c.PersonID, &c.Type, &c.Value, &c.Enabled, &c.AddedAt, &c.LastUsed)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}

	return creds, rows.Err()
}

// SetCredentialEnabled enables or disables a credential
func (d *Database) SetCredentialEnabled(id string, enabled bool) error {
	query := d.placeholders(`UPDATE credentials SET enabled = ? WHERE id = ?`)

	res, err := d.db.Exec(query, enabled, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// TouchCredentialLastUsed records a successful use of a credential
func (d *Database) TouchCredentialLastUsed(id string, at time.Time) error {
	query := d.placeholders(`UPDATE credentials SET last_used = ? WHERE id = ?`)

	_, err := d.db.Exec(query, at, id)
	return err
}

// Vehicle operations

// CreateVehicle creates a new vehicle record
func (d *Database) CreateVehicle(v *models.Vehicle) error {
	query := d.placeholders(`INSERT INTO vehicles (id, plate, owner_id, authorized, created_at)
	          VALUES (?, ?, ?, ?, ?)`)

	_, err := d.db.Exec(query, v.ID, v.Plate, v.OwnerID, v.Authorized, v.CreatedAt)
	return err
}

// CreateVehicleWithCredential creates a vehicle and its paired plate
// credential in one transaction, so neither record can exist without the
// other if either insert fails.
func (d *Database) CreateVehicleWithCredential(v *models.Vehicle, c *models.Credential) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	credQuery := d.placeholders(`INSERT INTO credentials
	          (id, person_id, type, value, enabled, added_at, last_used)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.Exec(credQuery,
		c.ID, c.PersonID, c.Type, c.Value, c.Enabled, c.AddedAt, c.LastUsed,
	); err != nil {
		return err
	}

	vehicleQuery := d.placeholders(`INSERT INTO vehicles (id, plate, owner_id, authorized, created_at)
	          VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.Exec(vehicleQuery,
		v.ID, v.Plate, v.OwnerID, v.Authorized, v.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetVehicleByPlate retrieves a vehicle by normalized plate
func (d *Database) GetVehicleByPlate(plate string) (*models.Vehicle, error) {
	query := d.placeholders(`SELECT id, plate, owner_id, authorized, created_at
	          FROM vehicles WHERE plate = ?`)

	var v models.Vehicle
	err := d.db.QueryRow(query, plate).Scan(&v.ID, &v.Plate, &v.OwnerID, &v.Authorized, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVehiclesByOwner retrieves all vehicles registered to a person
func (d *Database) ListVehiclesByOwner(ownerID string) ([]*models.Vehicle, error) {
	query := d.placeholders(`SELECT id, plate, owner_id, authorized, created_at
	          FROM vehicles WHERE owner_id = ? ORDER BY created_at`)

	rows, err := d.db.Query(query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.Plate, &v.OwnerID, &v.Authorized, &v.CreatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, &v)
	}

	return vehicles, rows.Err()
}

// ListVehicles retrieves every vehicle. Used to hydrate the plate index.
func (d *Database) ListVehicles() ([]*models.Vehicle, error) {
	query := `SELECT id, plate, owner_id, authorized, created_at FROM vehicles ORDER BY created_at`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.Plate, &v.OwnerID, &v.Authorized, &v.CreatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, &v)
	}

	return vehicles, rows.Err()
}

// SetVehicleAuthorized flips a vehicle's authorized flag
func (d *Database) SetVehicleAuthorized(id string, authorized bool) error {
	query := d.placeholders(`UPDATE vehicles SET authorized = ? WHERE id = ?`)

	res, err := d.db.Exec(query, authorized, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
