package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mukulanand/echoviva/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session ID is unknown.
var ErrNotFound = errors.New("session not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		candidate_name TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		current_index INTEGER NOT NULL DEFAULT 0,
		phase TEXT NOT NULL DEFAULT 'announcing',
		think_countdown INTEGER NOT NULL DEFAULT 0,
		announced INTEGER NOT NULL DEFAULT 0,
		speech_complete INTEGER NOT NULL DEFAULT 0,
		speak_duration REAL NOT NULL DEFAULT 0,
		phase_start DATETIME,
		indicator_state TEXT NOT NULL DEFAULT 'idle',
		indicator_color TEXT NOT NULL DEFAULT 'low',
		status TEXT NOT NULL DEFAULT 'in_progress',
		report TEXT,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_questions (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		reference_answer TEXT NOT NULL,
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS log_entries (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		user_answer TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS answer_records (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		user_answer TEXT NOT NULL DEFAULT '',
		correct_answer TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSession writes the full session state. Existing rows for the same
// ID are replaced, so every step persists a consistent snapshot.
func (s *Store) SaveSession(sess *model.Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var report any
	if sess.Report != nil {
		data, err := json.Marshal(sess.Report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		report = string(data)
	}

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO sessions
		 (id, candidate_name, candidate_id, subject, current_index, phase, think_countdown,
		  announced, speech_complete, speak_duration, phase_start, indicator_state,
		  indicator_color, status, report, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CandidateName, sess.CandidateID, sess.Subject,
		sess.CurrentIndex, sess.Phase, sess.ThinkCountdown,
		sess.Announced, sess.SpeechComplete, sess.SpeakDuration, sess.PhaseStart,
		sess.IndicatorState, sess.IndicatorColor, sess.Status, report, sess.StartedAt,
	)
	if err != nil {
		return err
	}

	for _, table := range []string{"session_questions", "log_entries", "answer_records"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE session_id = ?`, sess.ID); err != nil {
			return err
		}
	}
	for i, q := range sess.QuestionSet {
		_, err := tx.Exec(
			`INSERT INTO session_questions (session_id, position, question, reference_answer) VALUES (?, ?, ?, ?)`,
			sess.ID, i, q.Question, q.ReferenceAnswer,
		)
		if err != nil {
			return err
		}
	}
	for i, e := range sess.Log {
		_, err := tx.Exec(
			`INSERT INTO log_entries (session_id, position, question, user_answer) VALUES (?, ?, ?, ?)`,
			sess.ID, i, e.Question, e.UserAnswer,
		)
		if err != nil {
			return err
		}
	}
	for i, r := range sess.Records {
		_, err := tx.Exec(
			`INSERT INTO answer_records (session_id, position, question, user_answer, correct_answer, score, feedback)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, r.Question, r.UserAnswer, r.CorrectAnswer, r.Score, r.Feedback,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSession returns the full session state for an ID.
func (s *Store) LoadSession(id string) (*model.Session, error) {
	sess := &model.Session{}
	var report sql.NullString
	var phaseStart sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, candidate_name, candidate_id, subject, current_index, phase, think_countdown,
		        announced, speech_complete, speak_duration, phase_start, indicator_state,
		        indicator_color, status, report, started_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(
		&sess.ID, &sess.CandidateName, &sess.CandidateID, &sess.Subject,
		&sess.CurrentIndex, &sess.Phase, &sess.ThinkCountdown,
		&sess.Announced, &sess.SpeechComplete, &sess.SpeakDuration, &phaseStart,
		&sess.IndicatorState, &sess.IndicatorColor, &sess.Status, &report, &sess.StartedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if phaseStart.Valid {
		sess.PhaseStart = phaseStart.Time
	}
	if report.Valid && report.String != "" {
		var r model.Report
		if err := json.Unmarshal([]byte(report.String), &r); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		sess.Report = &r
	}

	rows, err := s.db.Query(
		`SELECT question, reference_answer FROM session_questions WHERE session_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var q model.QuestionPair
		if err := rows.Scan(&q.Question, &q.ReferenceAnswer); err != nil {
			return nil, err
		}
		sess.QuestionSet = append(sess.QuestionSet, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logRows, err := s.db.Query(
		`SELECT question, user_answer FROM log_entries WHERE session_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer logRows.Close()
	for logRows.Next() {
		var e model.LogEntry
		if err := logRows.Scan(&e.Question, &e.UserAnswer); err != nil {
			return nil, err
		}
		sess.Log = append(sess.Log, e)
	}
	if err := logRows.Err(); err != nil {
		return nil, err
	}

	recRows, err := s.db.Query(
		`SELECT question, user_answer, correct_answer, score, feedback
		 FROM answer_records WHERE session_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer recRows.Close()
	for recRows.Next() {
		var r model.AnswerRecord
		if err := recRows.Scan(&r.Question, &r.UserAnswer, &r.CorrectAnswer, &r.Score, &r.Feedback); err != nil {
			return nil, err
		}
		sess.Records = append(sess.Records, r)
	}
	return sess, recRows.Err()
}

// SessionSummary is a listing row without the per-question detail.
type SessionSummary struct {
	ID            string              `json:"id"`
	CandidateName string              `json:"candidate_name"`
	CandidateID   string              `json:"candidate_id"`
	Subject       string              `json:"subject"`
	Status        model.SessionStatus `json:"status"`
	StartedAt     time.Time           `json:"started_at"`
}

// ListSessions returns all sessions, most recent first.
func (s *Store) ListSessions() ([]SessionSummary, error) {
	rows, err := s.db.Query(
		`SELECT id, candidate_name, candidate_id, subject, status, started_at
		 FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.CandidateName, &sum.CandidateID, &sum.Subject, &sum.Status, &sum.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its child rows.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"session_questions", "log_entries", "answer_records"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE session_id = ?`, id); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
