package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ayusman/cloak/internal/cloak"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is returned when a preset name is already taken.
	ErrDuplicateName = errors.New("name already exists")
)

// Preset is a named color range stored in the database.
type Preset struct {
	ID        string
	Name      string
	Range     cloak.ColorRange
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PresetRepository provides CRUD operations for presets.
type PresetRepository struct {
	db *sql.DB
}

// Presets returns the preset repository for this store.
func (s *Store) Presets() *PresetRepository {
	return &PresetRepository{db: s.db}
}

const presetColumns = `id, name, low_h, low_s, low_v, high_h, high_s, high_v, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(row scanner) (*Preset, error) {
	p := &Preset{}
	r := &p.Range
	err := row.Scan(&p.ID, &p.Name, &r.LowH, &r.LowS, &r.LowV, &r.HighH, &r.HighS, &r.HighV, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new preset into the database.
func (r *PresetRepository) Create(p *Preset) error {
	if err := p.Range.Validate(); err != nil {
		return err
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	c := p.Range
	_, err := r.db.Exec(
		`INSERT INTO presets (`+presetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, c.LowH, c.LowS, c.LowV, c.HighH, c.HighS, c.HighV, p.CreatedAt, p.UpdatedAt,
	)
	return mapConstraint(err)
}

// GetByID retrieves a preset by its ID.
func (r *PresetRepository) GetByID(id string) (*Preset, error) {
	p, err := scanPreset(r.db.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetByName retrieves a preset by its name.
func (r *PresetRepository) GetByName(name string) (*Preset, error) {
	p, err := scanPreset(r.db.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List retrieves all presets ordered by name.
func (r *PresetRepository) List() ([]*Preset, error) {
	rows, err := r.db.Query(`SELECT ` + presetColumns + ` FROM presets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var presets []*Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return presets, nil
}

// Update updates an existing preset in the database.
func (r *PresetRepository) Update(p *Preset) error {
	if err := p.Range.Validate(); err != nil {
		return err
	}

	p.UpdatedAt = time.Now()

	c := p.Range
	result, err := r.db.Exec(
		`UPDATE presets SET name = ?, low_h = ?, low_s = ?, low_v = ?, high_h = ?, high_s = ?, high_v = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, c.LowH, c.LowS, c.LowV, c.HighH, c.HighS, c.HighV, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return mapConstraint(err)
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

// Delete removes a preset from the database by its ID.
func (r *PresetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM presets WHERE id = ?`, id)
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

// mapConstraint turns a unique constraint violation on the name into ErrDuplicateName.
func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: presets.name") {
		return ErrDuplicateName
	}
	return err
}
