package nightly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store persists the nightly set as a single JSON array between runs.
// The cache is an accelerator, never a source of truth: a missing or
// corrupt file is a cold start, not an error.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted set. Absence and corruption both yield an empty
// set; corruption is logged so the operator knows history was discarded.
func (s *Store) Load(ctx context.Context) []Nightly {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.WarnContext(ctx, "Could not read nightly cache, starting cold",
				"path", s.path, "error", err)
		}
		return nil
	}

	var nightlies []Nightly
	if err := json.Unmarshal(data, &nightlies); err != nil {
		slog.WarnContext(ctx, "Nightly cache is corrupt, starting cold",
			"path", s.path, "error", err)
		return nil
	}
	return nightlies
}

// Save writes the set back, pretty-printed, via a temp-file rename so a
// crash mid-write cannot corrupt the previous cache.
func (s *Store) Save(ctx context.Context, nightlies []Nightly) error {
	if nightlies == nil {
		nightlies = []Nightly{}
	}
	data, err := json.MarshalIndent(nightlies, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding nightly cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".nightlies-*.json")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing cache file: %w", err)
	}

	slog.DebugContext(ctx, "Saved nightly cache", "path", s.path, "count", len(nightlies))
	return nil
}
