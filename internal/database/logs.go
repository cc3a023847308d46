package database

import (
	"strings"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
)

// LogFilter narrows an access-log query. Zero values mean "no constraint".
type LogFilter struct {
	AccessPointID string
	PersonID      string
	Result        models.Result
	Direction     models.Direction
	From          time.Time
	To            time.Time
	Limit         int
	Offset        int
}

// LogStats aggregates access-log counts over a period.
type LogStats struct {
	Total       int64                      `json:"total"`
	ByResult    map[models.Result]int64    `json:"by_result"`
	ByDirection map[models.Direction]int64 `json:"by_direction"`
}

const accessLogColumns = `id, seq, timestamp, access_point_id, person_id, credential_type,
	                 direction, result, reason, confidence, photo_ref, plate, event_id, actor_id`

// InsertAccessLog appends one audit entry. This is the only write the
// engine ever performs on access_logs.
func (d *Database) InsertAccessLog(l *models.AccessLog) error {
	query := d.placeholders(`INSERT INTO access_logs
	          (` + accessLogColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := d.db.Exec(query,
		l.ID, l.Seq, l.Timestamp, l.AccessPointID, l.PersonID, l.CredentialType,
		l.Direction, l.Result, l.Reason, l.Confidence, l.PhotoRef, l.Plate, l.EventID, l.ActorID,
	)
	return err
}

// GetAccessLogByEventID retrieves the entry written for an adapter event id
func (d *Database) GetAccessLogByEventID(eventID string) (*models.AccessLog, error) {
	query := d.placeholders(`SELECT ` + accessLogColumns + ` FROM access_logs WHERE event_id = ?`)

	return d.scanAccessLog(d.db.QueryRow(query, eventID))
}

// GetAccessLog retrieves an entry by id
func (d *Database) GetAccessLog(id string) (*models.AccessLog, error) {
	query := d.placeholders(`SELECT ` + accessLogColumns + ` FROM access_logs WHERE id = ?`)

	return d.scanAccessLog(d.db.QueryRow(query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (d *Database) scanAccessLog(row rowScanner) (*models.AccessLog, error) {
	var l models.AccessLog
	err := row.Scan(
		&l.ID, &l.Seq, &l.Timestamp, &l.AccessPointID, &l.PersonID, &l.CredentialType,
		&l.Direction, &l.Result, &l.Reason, &l.Confidence, &l.PhotoRef, &l.Plate, &l.EventID, &l.ActorID,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MaxAccessLogSeq returns the highest sequence number ever written, or 0
// for an empty log. Seeds the in-process monotonic counter at startup.
func (d *Database) MaxAccessLogSeq() (int64, error) {
	var seq int64
	err := d.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM access_logs`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// buildLogWhere assembles the WHERE clause and arguments for a filter.
func buildLogWhere(f LogFilter) (string, []any) {
	var conds []string
	var args []any

	if f.AccessPointID != "" {
		conds = append(conds, "access_point_id = ?")
		args = append(args, f.AccessPointID)
	}
	if f.PersonID != "" {
		conds = append(conds, "person_id = ?")
		args = append(args, f.PersonID)
	}
	if f.Result != "" {
		conds = append(conds, "result = ?")
		args = append(args, f.Result)
	}
	if f.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, f.Direction)
	}
	if !f.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, f.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// QueryAccessLogs retrieves a page of entries matching the filter, newest
// first by sequence.
func (d *Database) QueryAccessLogs(f LogFilter) ([]*models.AccessLog, error) {
	where, args := buildLogWhere(f)

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	query := d.placeholders(`SELECT ` + accessLogColumns + ` FROM access_logs` + where +
		` ORDER BY seq DESC LIMIT ? OFFSET ?`)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.AccessLog
	for rows.Next() {
		l, err := d.scanAccessLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	return logs, rows.Err()
}

// CountAccessLogs returns the number of entries matching the filter
func (d *Database) CountAccessLogs(f LogFilter) (int64, error) {
	where, args := buildLogWhere(f)
	query := d.placeholders(`SELECT COUNT(*) FROM access_logs` + where)

	var count int64
	err := d.db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AccessLogStats aggregates counts by result and direction over a period
func (d *Database) AccessLogStats(from, to time.Time) (*LogStats, error) {
	f := LogFilter{From: from, To: to}
	where, args := buildLogWhere(f)

	stats := &LogStats{
		ByResult:    make(map[models.Result]int64),
		ByDirection: make(map[models.Direction]int64),
	}

	query := d.placeholders(`SELECT result, COUNT(*) FROM access_logs` + where + ` GROUP BY result`)
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var result models.Result
		var count int64
		if err := rows.Scan(&result, &count); err != nil {
			return nil, err
		}
		stats.ByResult[result] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dirCond := ` WHERE direction != ''`
	if where != "" {
		dirCond = where + ` AND direction != ''`
	}
	query = d.placeholders(`SELECT direction, COUNT(*) FROM access_logs` + dirCond + ` GROUP BY direction`)
	dirRows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer dirRows.Close()
	for dirRows.Next() {
		var dir models.Direction
		var count int64
		if err := dirRows.Scan(&dir, &count); err != nil {
			return nil, err
		}
		stats.ByDirection[dir] = count
	}

	return stats, dirRows.Err()
}
