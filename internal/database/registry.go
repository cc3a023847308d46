package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
)

// Controller operations

// CreateController provisions a new controller
func (d *Database) CreateController(c *models.Controller) error {
	typesJSON, err := json.Marshal(c.CredentialTypes)
	if err != nil {
		return fmt.Errorf("failed to encode credential types: %w", err)
	}

	query := d.placeholders(`INSERT INTO controllers
	          (id, vendor, address, credential_types_json, status, last_seen, retired, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = d.db.Exec(query,
		c.ID, c.Vendor, c.Address, string(typesJSON), c.Status, c.LastSeen, c.Retired, c.CreatedAt,
	)
	return err
}

// GetController retrieves a controller by ID
func (d *Database) GetController(id string) (*models.Controller, error) {
	query := d.placeholders(`SELECT id, vendor, address, credential_types_json, status, last_seen, retired, created_at
	          FROM controllers WHERE id = ?`)

	var c models.Controller
	var typesJSON string
	err := d.db.QueryRow(query, id).Scan(
		&c.ID, &c.Vendor, &c.Address, &typesJSON, &c.Status, &c.LastSeen, &c.Retired, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(typesJSON), &c.CredentialTypes); err != nil {
		return nil, fmt.Errorf("failed to decode credential types for controller %s: %w", id, err)
	}
	return &c, nil
}

// ListControllers retrieves all controllers, retired ones included
func (d *Database) ListControllers() ([]*models.Controller, error) {
	query := `SELECT id, vendor, address, credential_types_json, status, last_seen, retired, created_at
	          FROM controllers ORDER BY created_at`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var controllers []*models.Controller
	for rows.Next() {
		var c models.Controller
		var typesJSON string
		err := rows.Scan(
			&c.ID, &c.Vendor, &c.Address, &typesJSON, &c.Status, &c.LastSeen, &c.Retired, &c.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(typesJSON), &c.CredentialTypes); err != nil {
			return nil, fmt.Errorf("failed to decode credential types for controller %s: %w", c.ID, err)
		}
		controllers = append(controllers, &c)
	}

	return controllers, rows.Err()
}

// SetControllerStatus updates a controller's health state and last-seen time
func (d *Database) SetControllerStatus(id string, status models.ControllerStatus, seenAt *time.Time) error {
	if seenAt != nil {
		query := d.placeholders(`UPDATE controllers SET status = ?, last_seen = ? WHERE id = ?`)
		res, err := d.db.Exec(query, status, *seenAt, id)
		if err != nil {
			return err
		}
		return requireRow(res)
	}

	query := d.placeholders(`UPDATE controllers SET status = ? WHERE id = ?`)
	res, err := d.db.Exec(query, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RetireController soft-retires a controller. Controllers are never deleted.
func (d *Database) RetireController(id string) error {
	query := d.placeholders(`UPDATE controllers SET retired = ? WHERE id = ?`)

	res, err := d.db.Exec(query, true, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Access point operations

// CreateAccessPoint provisions a new access point
func (d *Database) CreateAccessPoint(p *models.AccessPoint) error {
	query := d.placeholders(`INSERT INTO access_points
	          (id, kind, controller_id, direction, location, anti_passback,
	           emergency_exit, fail_open, status, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := d.db.Exec(query,
		p.ID, p.Kind, p.ControllerID, p.Direction, p.Location, p.AntiPassback,
		p.EmergencyExit, p.FailOpen, p.Status, p.CreatedAt,
	)
	return err
}

// GetAccessPoint retrieves an access point by ID
func (d *Database) GetAccessPoint(id string) (*models.AccessPoint, error) {
	query := d.placeholders(`SELECT id, kind, controller_id, direction, location, anti_passback,
	                 emergency_exit, fail_open, status, created_at
	          FROM access_points WHERE id = ?`)

	var p models.AccessPoint
	err := d.db.QueryRow(query, id).Scan(
		&p.ID, &p.Kind, &p.ControllerID, &p.Direction, &p.Location, &p.AntiPassback,
		&p.EmergencyExit, &p.FailOpen, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListAccessPoints retrieves all access points
func (d *Database) ListAccessPoints() ([]*models.AccessPoint, error) {
	query := `SELECT id, kind, controller_id, direction, location, anti_passback,
	                 emergency_exit, fail_open, status, created_at
	          FROM access_points ORDER BY created_at`

	return d.queryAccessPoints(query)
}

// ListAccessPointsByController retrieves access points owned by a controller
func (d *Database) ListAccessPointsByController(controllerID string) ([]*models.AccessPoint, error) {
	query := d.placeholders(`SELECT id, kind, controller_id, direction, location, anti_passback,
	                 emergency_exit, fail_open, status, created_at
	          FROM access_points WHERE controller_id = ? ORDER BY created_at`)

	return d.queryAccessPoints(query, controllerID)
}

func (d *Database) queryAccessPoints(query string, args ...any) ([]*models.AccessPoint, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*models.AccessPoint
	for rows.Next() {
		var p models.AccessPoint
		err := rows.Scan(
			&p.ID, &p.Kind, &p.ControllerID, &p.Direction, &p.Location, &p.AntiPassback,
			&p.EmergencyExit, &p.FailOpen, &p.Status, &p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		points = append(points, &p)
	}

	return points, rows.Err()
}

// SetAccessPointStatus updates a point's operational status
func (d *Database) SetAccessPointStatus(id string, status models.AccessPointStatus) error {
	query := d.placeholders(`UPDATE access_points SET status = ? WHERE id = ?`)

	res, err := d.db.Exec(query, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
