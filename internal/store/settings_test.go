package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ayusman/cloak/internal/cloak"
)

func TestSettingsRepository_GetSet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	if err := repo.Set("mirror", "true"); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if err := repo.Set("mirror", "false"); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}

	got, err := repo.Get("mirror")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got != "false" {
		t.Errorf("Get() = %q, want %q", got, "false")
	}

	if err := repo.Delete("mirror"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := repo.Delete("mirror"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestSettingsRepository_ActiveRange(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.ActiveRange(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before anything is saved, got: %v", err)
	}

	want := cloak.ColorRange{LowH: 170, LowS: 120, LowV: 70, HighH: 10, HighS: 255, HighV: 255}
	if err := repo.SetActiveRange(want); err != nil {
		t.Fatalf("failed to save range: %v", err)
	}

	got, err := repo.ActiveRange()
	if err != nil {
		t.Fatalf("failed to load range: %v", err)
	}
	if got != want {
		t.Errorf("ActiveRange() = %v, want %v", got, want)
	}

	bad := want
	bad.LowV = 256
	if err := repo.SetActiveRange(bad); !errors.Is(err, cloak.ErrRangeOutOfDomain) {
		t.Errorf("expected ErrRangeOutOfDomain, got: %v", err)
	}
}

func TestSettingsRepository_ActiveRange_Corrupt(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set(SettingActiveRange, "not json"); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if _, err := repo.ActiveRange(); err == nil {
		t.Error("expected an error decoding a corrupt range")
	}

	if err := repo.Set(SettingActiveRange, `{"low_h":0,"low_s":0,"low_v":0,"high_h":400,"high_s":255,"high_v":255}`); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if _, err := repo.ActiveRange(); !errors.Is(err, cloak.ErrRangeOutOfDomain) {
		t.Errorf("expected ErrRangeOutOfDomain, got: %v", err)
	}
}

func TestSettingsRepository_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	want := cloak.DefaultColorRange()
	if err := s.Settings().SetActiveRange(want); err != nil {
		t.Fatalf("failed to save range: %v", err)
	}
	s.Close()

	// Reopening reruns migrations on an existing database.
	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	got, err := s.Settings().ActiveRange()
	if err != nil {
		t.Fatalf("failed to load range: %v", err)
	}
	if got != want {
		t.Errorf("ActiveRange() = %v, want %v", got, want)
	}
}
