package store

import (
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/corona10/goimagehash"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// Analysis is a stored finger count result.
type Analysis struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	ColorModel string        `json:"color_model"`
	Fingers    int           `json:"fingers"`
	Found      bool          `json:"found"`
	Area       float64       `json:"area"`
	Valleys    int           `json:"valleys"`
	Defects    int           `json:"defects"`
	ImageHash  *uint64       `json:"image_hash,omitempty"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`

	// Distance is the perceptual hash distance, set by ListSimilar only.
	Distance int `json:"distance,omitempty"`
}

// AnalysisRepository provides CRUD operations for analyses.
type AnalysisRepository struct {
	db *sql.DB
}

// Analyses returns the analysis repository for this store.
func (s *Store) Analyses() *AnalysisRepository {
	return &AnalysisRepository{db: s.db}
}

const analysisColumns = `id, source, color_model, fingers, found, area, valleys, defects,
	image_hash, width, height, duration_us, created_at`

// Create inserts a new analysis into the database.
func (r *AnalysisRepository) Create(a *Analysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	var hash sql.NullInt64
	if a.ImageHash != nil {
		hash = sql.NullInt64{Int64: int64(*a.ImageHash), Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO analyses (`+analysisColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Source, a.ColorModel, a.Fingers, a.Found, a.Area, a.Valleys, a.Defects,
		hash, a.Width, a.Height, a.Duration.Microseconds(), a.CreatedAt,
	)
	return err
}

// GetByID retrieves an analysis by its ID.
func (r *AnalysisRepository) GetByID(id string) (*Analysis, error) {
	row := r.db.QueryRow(`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns the newest analyses first. limit <= 0 means DefaultListLimit.
func (r *AnalysisRepository) List(limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Query(
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListSimilar returns analyses whose perceptual hash lies within maxDistance
// bits of hash, nearest first.
func (r *AnalysisRepository) ListSimilar(hash uint64, maxDistance, limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Query(
		`SELECT ` + analysisColumns + ` FROM analyses WHERE image_hash IS NOT NULL`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	target := goimagehash.NewImageHash(hash, goimagehash.PHash)
	var out []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		dist, err := target.Distance(goimagehash.NewImageHash(*a.ImageHash, goimagehash.PHash))
		if err != nil {
			return nil, err
		}
		if dist <= maxDistance {
			a.Distance = dist
			out = append(out, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored analyses.
func (r *AnalysisRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&n)
	return n, err
}

// Delete removes an analysis by its ID.
func (r *AnalysisRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*Analysis, error) {
	a := &Analysis{}
	var hash sql.NullInt64
	var durationUS int64
	err := row.Scan(
		&a.ID, &a.Source, &a.ColorModel, &a.Fingers, &a.Found, &a.Area, &a.Valleys, &a.Defects,
		&hash, &a.Width, &a.Height, &durationUS, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		h := uint64(hash.Int64)
		a.ImageHash = &h
	}
	a.Duration = time.Duration(durationUS) * time.Microsecond
	return a, nil
}
