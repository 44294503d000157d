package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/cloak/internal/cloak"
)

// SettingActiveRange holds the color range in use when the app last ran.
const SettingActiveRange = "active_range"

// SettingsRepository reads and writes key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func (r *SettingsRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
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

// ActiveRange returns the persisted active color range.
func (r *SettingsRepository) ActiveRange() (cloak.ColorRange, error) {
	value, err := r.Get(SettingActiveRange)
	if err != nil {
		return cloak.ColorRange{}, err
	}

	var c cloak.ColorRange
	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return cloak.ColorRange{}, fmt.Errorf("decode %s: %w", SettingActiveRange, err)
	}
	if err := c.Validate(); err != nil {
		return cloak.ColorRange{}, fmt.Errorf("decode %s: %w", SettingActiveRange, err)
	}
	return c, nil
}

// SetActiveRange persists c as the active color range.
func (r *SettingsRepository) SetActiveRange(c cloak.ColorRange) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.Set(SettingActiveRange, string(data))
}
