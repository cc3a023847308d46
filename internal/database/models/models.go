// Package models defines the data structures for database entities in the
// Conecta+ access engine. It includes models for persons, credentials,
// vehicles, controllers, access points, and the append-only access log,
// representing the core data model for the application.
package models

import (
	"database/sql"
	"time"
)

// CredentialType identifies how a credential value was captured at the
// reader. The set is closed: validation dispatches over it with an
// exhaustive switch, so adding a type is a compile-time concern.
type CredentialType string

const (
	CredentialFace        CredentialType = "face"
	CredentialFingerprint CredentialType = "fingerprint"
	CredentialCard        CredentialType = "card"
	CredentialQRCode      CredentialType = "qrcode"
	CredentialPlate       CredentialType = "plate"
	CredentialPIN         CredentialType = "pin"
	CredentialBluetooth   CredentialType = "bluetooth"
)

// CredentialTypes lists every supported credential type.
var CredentialTypes = []CredentialType{
	CredentialFace,
	CredentialFingerprint,
	CredentialCard,
	CredentialQRCode,
	CredentialPlate,
	CredentialPIN,
	CredentialBluetooth,
}

// Valid reports whether t is one of the supported credential types.
func (t CredentialType) Valid() bool {
	switch t {
	case CredentialFace, CredentialFingerprint, CredentialCard,
		CredentialQRCode, CredentialPlate, CredentialPIN, CredentialBluetooth:
		return true
	}
	return false
}

// PersonCategory classifies a person for reporting and lifecycle purposes.
type PersonCategory string

const (
	CategoryResident PersonCategory = "resident"
	CategoryVisitor  PersonCategory = "visitor"
	CategoryEmployee PersonCategory = "employee"
	CategoryService  PersonCategory = "service"
	CategoryVIP      PersonCategory = "vip"
	CategoryBlocked  PersonCategory = "blocked"
)

// AccessPointStatus drives the fast path of validation: locked always
// denies, unlocked always grants (bypass, still logged), maintenance
// denies with its own reason, active evaluates normally.
type AccessPointStatus string

const (
	PointActive      AccessPointStatus = "active"
	PointLocked      AccessPointStatus = "locked"
	PointUnlocked    AccessPointStatus = "unlocked"
	PointMaintenance AccessPointStatus = "maintenance"
)

// AccessPointKind is the physical mechanism behind a point.
type AccessPointKind string

const (
	KindDoor      AccessPointKind = "door"
	KindBarrier   AccessPointKind = "barrier"
	KindTurnstile AccessPointKind = "turnstile"
	KindGate      AccessPointKind = "gate"
)

// Direction of an access attempt.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
	DirectionBoth  Direction = "both"
)

// ControllerStatus is the health state reported by the background checker.
type ControllerStatus string

const (
	ControllerOnline  ControllerStatus = "online"
	ControllerOffline ControllerStatus = "offline"
	ControllerError   ControllerStatus = "error"
)

// Result of a validation attempt.
type Result string

const (
	ResultGranted Result = "granted"
	ResultDenied  Result = "denied"
	ResultPending Result = "pending"
	ResultTimeout Result = "timeout"
	ResultError   Result = "error"
)

// WildcardPointID in a rule's point set grants every access point.
const WildcardPointID = "*"

// Credential is a typed proof of identity belonging to a person. The
// (Type, Value) pair is unique across all enabled credentials.
type Credential struct {
	ID       string         `db:"id" json:"id"`
	PersonID string         `db:"person_id" json:"person_id"`
	Type     CredentialType `db:"type" json:"type"`
	Value    string         `db:"value" json:"value"`
	Enabled  bool           `db:"enabled" json:"enabled"`
	AddedAt  time.Time      `db:"added_at" json:"added_at"`
	LastUsed sql.NullTime   `db:"last_used" json:"last_used"`
}

// Schedule restricts a rule to days of the week and a time-of-day range.
// Start and End are minutes since midnight; End < Start means the range
// crosses midnight.
type Schedule struct {
	Days  []time.Weekday `json:"days"`
	Start int            `json:"start"`
	End   int            `json:"end"`
}

// AccessRule authorizes a person at a set of access points, optionally
// scoped by a schedule. The wildcard id "*" covers every point.
type AccessRule struct {
	AccessPointIDs []string  `json:"access_point_ids"`
	Schedule       *Schedule `json:"schedule,omitempty"`
}

// Person is an identity that may hold credentials, vehicles, and rules.
type Person struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Category    PersonCategory `db:"category" json:"category"`
	Unit        string         `db:"unit" json:"unit"`
	Document    string         `db:"document" json:"document"`
	Rules       []AccessRule   `db:"-" json:"rules"`
	ValidFrom   sql.NullTime   `db:"valid_from" json:"valid_from"`
	ValidUntil  sql.NullTime   `db:"valid_until" json:"valid_until"`
	Blocked     bool           `db:"blocked" json:"blocked"`
	BlockReason string         `db:"block_reason" json:"block_reason"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	Credentials []Credential   `db:"-" json:"credentials,omitempty"`
}

// PublicIdentity is the subset of a person exposed in decisions.
type PublicIdentity struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category PersonCategory `json:"category"`
	Unit     string         `json:"unit,omitempty"`
}

// Public returns the identity fields safe to hand back to adapters.
func (p *Person) Public() *PublicIdentity {
	return &PublicIdentity{ID: p.ID, Name: p.Name, Category: p.Category, Unit: p.Unit}
}

// Vehicle links a normalized plate to its owner. Registering a vehicle
// also enrolls a plate credential for the owner so both validation paths
// resolve consistently.
type Vehicle struct {
	ID         string    `db:"id" json:"id"`
	Plate      string    `db:"plate" json:"plate"`
	OwnerID    string    `db:"owner_id" json:"owner_id"`
	Authorized bool      `db:"authorized" json:"authorized"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Controller is a vendor device that reads credentials for one or more
// access points. Controllers are soft-retired, never deleted.
type Controller struct {
	ID              string           `db:"id" json:"id"`
	Vendor          string           `db:"vendor" json:"vendor"`
	Address         string           `db:"address" json:"address"`
	CredentialTypes []CredentialType `db:"-" json:"credential_types"`
	Status          ControllerStatus `db:"status" json:"status"`
	LastSeen        sql.NullTime     `db:"last_seen" json:"last_seen"`
	Retired         bool             `db:"retired" json:"retired"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// AccessPoint is an independently controllable entry/exit mechanism.
type AccessPoint struct {
	ID            string            `db:"id" json:"id"`
	Kind          AccessPointKind   `db:"kind" json:"kind"`
	ControllerID  string            `db:"controller_id" json:"controller_id"`
	Direction     Direction         `db:"direction" json:"direction"`
	Location      string            `db:"location" json:"location"`
	AntiPassback  bool              `db:"anti_passback" json:"anti_passback"`
	EmergencyExit bool              `db:"emergency_exit" json:"emergency_exit"`
	FailOpen      bool              `db:"fail_open" json:"fail_open"`
	Status        AccessPointStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// AccessLog is one append-only audit entry per validation attempt or
// emergency action. Entries are never updated or deleted.
type AccessLog struct {
	ID             string          `db:"id" json:"id"`
	Seq            int64           `db:"seq" json:"seq"`
	Timestamp      time.Time       `db:"timestamp" json:"timestamp"`
	AccessPointID  string          `db:"access_point_id" json:"access_point_id"`
	PersonID       sql.NullString  `db:"person_id" json:"person_id"`
	CredentialType CredentialType  `db:"credential_type" json:"credential_type"`
	Direction      Direction       `db:"direction" json:"direction"`
	Result         Result          `db:"result" json:"result"`
	Reason         string          `db:"reason" json:"reason"`
	Confidence     sql.NullFloat64 `db:"confidence" json:"confidence"`
	PhotoRef       sql.NullString  `db:"photo_ref" json:"photo_ref"`
	Plate          sql.NullString  `db:"plate" json:"plate"`
	EventID        sql.NullString  `db:"event_id" json:"event_id"`
	ActorID        sql.NullString  `db:"actor_id" json:"actor_id"`
}

// User represents an administrative user of the engine's API.
type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// SystemConfig represents system-wide configuration stored in the database
type SystemConfig struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
