package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Sample is a labelled feature vector recorded for retraining the classifier.
type Sample struct {
	ID         int64     `json:"id"`
	ClassIndex int       `json:"class_index"`
	Features   []float64 `json:"features"`
	CreatedAt  time.Time `json:"created_at"`
}

// SampleRepository provides access to training samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts a sample and sets its ID.
func (r *SampleRepository) Create(sm *Sample) error {
	data, err := json.Marshal(sm.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	sm.CreatedAt = time.Now()

	result, err := r.db.Exec(
		`INSERT INTO samples (class_index, features, created_at) VALUES (?, ?, ?)`,
		sm.ClassIndex, string(data), sm.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sm.ID = id
	return nil
}

// List returns samples in insertion order. A negative classIndex returns all.
func (r *SampleRepository) List(classIndex int) ([]*Sample, error) {
	query := `SELECT id, class_index, features, created_at FROM samples`
	var args []any
	if classIndex >= 0 {
		query += ` WHERE class_index = ?`
		args = append(args, classIndex)
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		sm := &Sample{}
		var data string
		if err := rows.Scan(&sm.ID, &sm.ClassIndex, &data, &sm.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &sm.Features); err != nil {
			return nil, fmt.Errorf("decode sample %d: %w", sm.ID, err)
		}
		samples = append(samples, sm)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// Count returns the number of samples per class index.
func (r *SampleRepository) Count() (map[int]int, error) {
	rows, err := r.db.Query(`SELECT class_index, COUNT(*) FROM samples GROUP BY class_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var idx, n int
		if err := rows.Scan(&idx, &n); err != nil {
			return nil, err
		}
		counts[idx] = n
	}
	return counts, rows.Err()
}

// Delete removes a sample by its ID.
func (r *SampleRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM samples WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
