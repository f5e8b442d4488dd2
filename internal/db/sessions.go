package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/deadreckon/internal/kalman"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one continuous recording run.
type Session struct {
	ID          string     `json:"session_id"`
	Source      string     `json:"source"`
	Note        string     `json:"note,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	SampleCount int        `json:"sample_count"`
}

// StartSession creates a session with a fresh UUID.
func (db *DB) StartSession(source, note string, startedAt time.Time) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		Source:    source,
		Note:      note,
		StartedAt: startedAt.UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, source, note, started_unix_ns) VALUES (?, ?, ?, ?)`,
		s.ID, s.Source, s.Note, s.StartedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return s, nil
}

// EndSession stamps the end time of an open session.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(
		`UPDATE sessions SET ended_unix_ns = ? WHERE session_id = ? AND ended_unix_ns IS NULL`,
		endedAt.UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

const sessionColumns = `s.session_id, s.source, s.note, s.started_unix_ns, s.ended_unix_ns,
	(SELECT COUNT(*) FROM motion_samples m WHERE m.session_id = s.session_id)`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Source, &s.Note, &started, &ended, &s.SampleCount); err != nil {
		return s, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	return s, nil
}

// Session returns one session by ID.
func (db *DB) Session(id string) (*Session, error) {
	s, err := scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Sessions lists sessions newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT ` + sessionColumns + ` FROM sessions s ORDER BY s.started_unix_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RecordSample stores s under sessionID.
func (db *DB) RecordSample(sessionID string, s kalman.MotionSample) error {
	_, err := db.Exec(
		`INSERT INTO motion_samples (
			session_id, seq, ts_unix_ns,
			x_pos, x_vel, x_acc,
			y_pos, y_vel, y_acc,
			z_pos, z_vel, z_acc,
			x_stationary, y_stationary, z_stationary,
			distance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int64(s.Seq), s.Timestamp.UnixNano(),
		s.X.Position, s.X.Velocity, s.X.Acceleration,
		s.Y.Position, s.Y.Velocity, s.Y.Acceleration,
		s.Z.Position, s.Z.Velocity, s.Z.Acceleration,
		s.Stationary[0], s.Stationary[1], s.Stationary[2],
		s.Distance,
	)
	if err != nil {
		return fmt.Errorf("failed to record sample %d: %w", s.Seq, err)
	}
	return nil
}

// Samples returns the most recent limit samples of a session in recording
// order. limit <= 0 returns all of them.
func (db *DB) Samples(sessionID string, limit int) ([]kalman.MotionSample, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT seq, ts_unix_ns,
			x_pos, x_vel, x_acc,
			y_pos, y_vel, y_acc,
			z_pos, z_vel, z_acc,
			x_stationary, y_stationary, z_stationary,
			distance
		FROM motion_samples
		WHERE session_id = ?
		ORDER BY sample_id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []kalman.MotionSample
	for rows.Next() {
		var (
			s   kalman.MotionSample
			seq int64
			ts  int64
		)
		if err := rows.Scan(&seq, &ts,
			&s.X.Position, &s.X.Velocity, &s.X.Acceleration,
			&s.Y.Position, &s.Y.Velocity, &s.Y.Acceleration,
			&s.Z.Position, &s.Z.Velocity, &s.Z.Acceleration,
			&s.Stationary[0], &s.Stationary[1], &s.Stationary[2],
			&s.Distance,
		); err != nil {
			return nil, err
		}
		s.Seq = uint64(seq)
		s.Timestamp = time.Unix(0, ts).UTC()
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// Recorder is a motion sink that writes every sample to one session.
type Recorder struct {
	db      *DB
	session *Session
}

// NewRecorder starts a session and returns a sink bound to it.
func NewRecorder(db *DB, source string, startedAt time.Time) (*Recorder, error) {
	s, err := db.StartSession(source, "", startedAt)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: db, session: s}, nil
}

func (r *Recorder) Consume(s kalman.MotionSample) error {
	return r.db.RecordSample(r.session.ID, s)
}

func (r *Recorder) SessionID() string { return r.session.ID }

// Close ends the session.
func (r *Recorder) Close(endedAt time.Time) error {
	return r.db.EndSession(r.session.ID, endedAt)
}
