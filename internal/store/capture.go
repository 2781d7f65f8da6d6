package store

import (
	"database/sql"
	"strings"
	"time"
)

// Capture is a letter confirmed during a session.
type Capture struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Letter     string    `json:"letter"`
	ClassIndex int       `json:"class_index"`
	Score      float64   `json:"score"`
	CapturedAt time.Time `json:"captured_at"`
}

// CaptureRepository provides access to captured letters.
type CaptureRepository struct {
	db *sql.DB
}

// Captures returns the capture repository for this store.
func (s *Store) Captures() *CaptureRepository {
	return &CaptureRepository{db: s.db}
}

// Create inserts a capture and sets its ID.
func (r *CaptureRepository) Create(c *Capture) error {
	if c.CapturedAt.IsZero() {
		c.CapturedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO captures (session_id, letter, class_index, score, captured_at) VALUES (?, ?, ?, ?, ?)`,
		c.SessionID, c.Letter, c.ClassIndex, c.Score, c.CapturedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// ListBySession returns a session's captures in the order they were made.
func (r *CaptureRepository) ListBySession(sessionID string) ([]*Capture, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, letter, class_index, score, captured_at
		 FROM captures WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var captures []*Capture
	for rows.Next() {
		c := &Capture{}
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Letter, &c.ClassIndex, &c.Score, &c.CapturedAt); err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return captures, nil
}

// Text spells out a session: its captured letters joined in order.
func (r *CaptureRepository) Text(sessionID string) (string, error) {
	captures, err := r.ListBySession(sessionID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range captures {
		b.WriteString(c.Letter)
	}
	return b.String(), nil
}
