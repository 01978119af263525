package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StepStore remembers the last step of a scenario whose output was
// persisted.
type StepStore interface {
	LoadStep(ctx context.Context, scenario string) (int, bool, error)
	SaveStep(ctx context.Context, scenario string, step int) error
}

// Checkpoint is the on-disk form of FileCheckpoint.
type Checkpoint struct {
	Steps     map[string]int `json:"steps"`
	UpdatedAt string         `json:"updated_at"`
}

// FileCheckpoint persists step checkpoints to a JSON file.
type FileCheckpoint struct {
	path string
}

func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

func (c *FileCheckpoint) LoadStep(_ context.Context, scenario string) (int, bool, error) {
	cp, err := c.load()
	if err != nil {
		return 0, false, err
	}
	step, ok := cp.Steps[scenario]
	return step, ok, nil
}

func (c *FileCheckpoint) SaveStep(_ context.Context, scenario string, step int) error {
	cp, err := c.load()
	if err != nil {
		return err
	}
	if cp.Steps == nil {
		cp.Steps = make(map[string]int)
	}
	cp.Steps[scenario] = step
	cp.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

func (c *FileCheckpoint) load() (Checkpoint, error) {
	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, nil
		}
		return Checkpoint{}, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return Checkpoint{}, fmt.Errorf("checkpoint path is a directory")
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, nil
}
