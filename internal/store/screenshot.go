package store

import (
	"database/sql"
	"time"
)

// Screenshot is a saved annotated frame.
type Screenshot struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Fingers   int       `json:"fingers"`
	CreatedAt time.Time `json:"created_at"`
}

// ScreenshotRepository records saved screenshots.
type ScreenshotRepository struct {
	db *sql.DB
}

// Screenshots returns the screenshot repository for this store.
func (s *Store) Screenshots() *ScreenshotRepository {
	return &ScreenshotRepository{db: s.db}
}

// Create inserts a new screenshot record.
func (r *ScreenshotRepository) Create(sc *Screenshot) error {
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO screenshots (id, path, fingers, created_at) VALUES (?, ?, ?, ?)`,
		sc.ID, sc.Path, sc.Fingers, sc.CreatedAt,
	)
	return err
}

// List returns all screenshots, newest first.
func (r *ScreenshotRepository) List() ([]*Screenshot, error) {
	rows, err := r.db.Query(
		`SELECT id, path, fingers, created_at FROM screenshots ORDER BY created_at DESC, path DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Screenshot
	for rows.Next() {
		sc := &Screenshot{}
		if err := rows.Scan(&sc.ID, &sc.Path, &sc.Fingers, &sc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Count returns the number of recorded screenshots.
func (r *ScreenshotRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM screenshots`).Scan(&n)
	return n, err
}
