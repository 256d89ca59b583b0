// Package stub is a local stand-in for the remote triage service. It
// serves the same five endpoints, keeps conversations in SQLite and
// answers with a Responder.
package stub

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"github.com/comigor/triagem-go/internal/logger"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("conversation not found")

const (
	cargoUser = "user"
	cargoAI   = "ai"
)

// Record is one stored message.
type Record struct {
	Cargo     string
	Body      string
	CreatedAt time.Time
}

// Row summarizes one conversation for the phone lookup.
type Row struct {
	SessionID   string
	Timestamp   time.Time
	LastMessage string
}

// Triage is the structured record collected for a conversation. Nil
// fields were never mentioned.
type Triage struct {
	MainComplaint *string  `json:"main_complaint"`
	Symptoms      []string `json:"symptoms"`
	Duration      *string  `json:"duration"`
	Frequency     *string  `json:"frequency"`
	Intensity     *int     `json:"intensity"`
	History       *string  `json:"history"`
	MeasuresTaken *string  `json:"measures_taken"`
}

// Store persists conversations in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and creates when needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS conversations (
        session_id TEXT PRIMARY KEY,
        phone TEXT NOT NULL DEFAULT '',
        triage TEXT,
        created_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT REFERENCES conversations(session_id),
        cargo TEXT,
        body TEXT,
        created_at DATETIME
    );`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	logger.L.Info("sqlite conversation DB initialized", "path", path)
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create starts a conversation for phone ("" when the caller is anonymous)
// and returns its new session id.
func (s *Store) Create(ctx context.Context, phone string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO conversations (session_id, phone, created_at) VALUES (?,?,?);`, id, phone, s.now()); err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return id, nil
}

// Exists reports whether sessionID is a known conversation.
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE session_id = ?;`, sessionID).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup conversation: %w", err)
	}
	return n > 0, nil
}

// Append stores one message at the end of a conversation.
func (s *Store) Append(ctx context.Context, sessionID, cargo, body string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (session_id, cargo, body, created_at) VALUES (?,?,?,?);`, sessionID, cargo, body, s.now())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Messages returns a conversation's messages in insertion order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Record, error) {
	ok, err := s.Exists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT cargo, body, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Cargo, &r.Body, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListByPhone returns the phone's conversations, newest first. A
// conversation without messages reports its creation time.
func (s *Store) ListByPhone(ctx context.Context, phone string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, created_at FROM conversations WHERE phone = ? ORDER BY created_at DESC, rowid DESC;`, phone)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	out := []Row{}
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.SessionID, &r.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}

	for i := range out {
		var last Record
		err := s.db.QueryRowContext(ctx, `SELECT body, created_at FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT 1;`, out[i].SessionID).
			Scan(&last.Body, &last.CreatedAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, fmt.Errorf("query last message: %w", err)
		default:
			out[i].Timestamp = last.CreatedAt
			out[i].LastMessage = last.Body
		}
	}
	return out, nil
}

// SaveTriage replaces the stored triage record.
func (s *Store) SaveTriage(ctx context.Context, sessionID string, t Triage) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode triage: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET triage = ? WHERE session_id = ?;`, string(data), sessionID)
	if err != nil {
		return fmt.Errorf("update triage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadTriage returns the stored triage record, empty when none was
// collected yet.
func (s *Store) LoadTriage(ctx context.Context, sessionID string) (Triage, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT triage FROM conversations WHERE session_id = ?;`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Triage{}, ErrNotFound
	}
	if err != nil {
		return Triage{}, fmt.Errorf("query triage: %w", err)
	}

	var t Triage
	if !data.Valid || data.String == "" {
		return t, nil
	}
	if err := json.Unmarshal([]byte(data.String), &t); err != nil {
		return Triage{}, fmt.Errorf("decode triage: %w", err)
	}
	return t, nil
}
