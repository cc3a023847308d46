// Package audit implements the append-only access log. Every validation
// attempt and emergency action becomes exactly one entry; entries are
// totally ordered by a monotonic sequence and are never updated or deleted.
package audit

import (
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a log entry does not exist.
var ErrNotFound = errors.New("not found")

// Log is the append-only audit log.
type Log struct {
	db     *database.Database
	logger *zap.Logger
	seq    atomic.Int64
}

// New creates an audit log, seeding the sequence counter from the highest
// sequence already persisted so ordering survives restarts.
func New(db *database.Database, logger *zap.Logger) (*Log, error) {
	l := &Log{db: db, logger: logger}

	max, err := db.MaxAccessLogSeq()
	if err != nil {
		return nil, fmt.Errorf("failed to read log sequence: %w", err)
	}
	l.seq.Store(max)
	return l, nil
}

// Entry is the append request. Optional fields use pointers; the log
// converts them to nullable columns.
type Entry struct {
	AccessPointID  string
	PersonID       string
	CredentialType models.CredentialType
	Direction      models.Direction
	Result         models.Result
	Reason         string
	Confidence     *float64
	PhotoRef       string
	Plate          string
	EventID        string
	ActorID        string
	Timestamp      time.Time
}

// Append writes one entry and returns the persisted record. Concurrent
// appends from different access points interleave freely; each append is
// atomic and claims the next sequence number.
func (l *Log) Append(e Entry) (*models.AccessLog, error) {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	rec := &models.AccessLog{
		ID:             uuid.New().String(),
		Seq:            l.seq.Add(1),
		Timestamp:      ts,
		AccessPointID:  e.AccessPointID,
		CredentialType: e.CredentialType,
		Direction:      e.Direction,
		Result:         e.Result,
		Reason:         e.Reason,
	}
	if e.PersonID != "" {
		rec.PersonID = sql.NullString{String: e.PersonID, Valid: true}
	}
	if e.Confidence != nil {
		rec.Confidence = sql.NullFloat64{Float64: *e.Confidence, Valid: true}
	}
	if e.PhotoRef != "" {
		rec.PhotoRef = sql.NullString{String: e.PhotoRef, Valid: true}
	}
	if e.Plate != "" {
		rec.Plate = sql.NullString{String: e.Plate, Valid: true}
	}
	if e.EventID != "" {
		rec.EventID = sql.NullString{String: e.EventID, Valid: true}
	}
	if e.ActorID != "" {
		rec.ActorID = sql.NullString{String: e.ActorID, Valid: true}
	}

	if err := l.db.InsertAccessLog(rec); err != nil {
		return nil, fmt.Errorf("failed to append access log: %w", err)
	}
	return rec, nil
}

// FindByEventID returns the entry previously written for an adapter event
// id, or ErrNotFound.
func (l *Log) FindByEventID(eventID string) (*models.AccessLog, error) {
	rec, err := l.db.GetAccessLogByEventID(eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Get returns a single entry by id, or ErrNotFound.
func (l *Log) Get(id string) (*models.AccessLog, error) {
	rec, err := l.db.GetAccessLog(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Query returns a page of entries matching the filter plus the total count.
func (l *Log) Query(f database.LogFilter) ([]*models.AccessLog, int64, error) {
	logs, err := l.db.QueryAccessLogs(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query access logs: %w", err)
	}
	total, err := l.db.CountAccessLogs(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count access logs: %w", err)
	}
	return logs, total, nil
}

// Stats aggregates counts by result and direction over a period.
func (l *Log) Stats(from, to time.Time) (*database.LogStats, error) {
	return l.db.AccessLogStats(from, to)
}
