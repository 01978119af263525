package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the last fully aggregated timestamp of each vault.
type StateStore interface {
	Load(ctx context.Context, vault string) (uint64, bool, error)
	Save(ctx context.Context, vault string, ts uint64) error
}

// FileStateStore stores state in a local JSON file.
type FileStateStore struct {
	Path string
}

type stateRecord struct {
	LastProcessed map[string]uint64 `json:"last_processed_ts"`
	UpdatedAt     string            `json:"updated_at"`
}

func (s *FileStateStore) Load(_ context.Context, vault string) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	rec, err := s.read()
	if err != nil {
		return 0, false, err
	}
	ts, ok := rec.LastProcessed[vault]
	return ts, ok, nil
}

func (s *FileStateStore) Save(_ context.Context, vault string, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	rec, err := s.read()
	if err != nil {
		return err
	}
	if rec.LastProcessed == nil {
		rec.LastProcessed = make(map[string]uint64)
	}
	rec.LastProcessed[vault] = ts
	rec.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStateStore) read() (stateRecord, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return stateRecord{}, nil
		}
		return stateRecord{}, fmt.Errorf("read state: %w", err)
	}
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return stateRecord{}, fmt.Errorf("parse state: %w", err)
	}
	return rec, nil
}
