// Package cdr implements an optional, off-by-default call-detail-record
// sink: one row per completed stream, written to MySQL for offline
// reporting. Disabled unless --mysql-dsn is passed.
package cdr

import (
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"karl/internal/obs"
)

// Record is one completed stream's summary, written once at shutdown.
type Record struct {
	SessionID   string
	SSRC        uint32
	PacketsSent uint64
	PacketsLost uint64
	PLCFrames   uint64
	StartedAt   time.Time
	EndedAt     time.Time
}

// Sink writes Records to a MySQL table. The schema is assumed to already
// exist (created by deployment tooling, not by this package).
type Sink struct {
	db *sql.DB
}

// NewSink opens a MySQL connection pool and verifies it with Ping.
func NewSink(dsn string) (*Sink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeResource, "cdr", "NewSink")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, obs.NewError(err, obs.CodeResource, "cdr", "NewSink")
	}
	obs.Infof("✅ call-detail-record sink connected")
	return &Sink{db: db}, nil
}

// Insert writes one completed-stream record.
func (s *Sink) Insert(r Record) error {
	const query = `
		INSERT INTO karl_sessions (session_id, ssrc, packets_sent, packets_lost, plc_frames, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, r.SessionID, r.SSRC, r.PacketsSent, r.PacketsLost, r.PLCFrames, r.StartedAt, r.EndedAt)
	if err != nil {
		return obs.NewError(err, obs.CodeResource, "cdr", "Insert")
	}
	return nil
}

// Close releases the connection pool.
func (s *Sink) Close() error {
	return s.db.Close()
}
