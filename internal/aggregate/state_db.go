package aggregate

import (
	"context"
	"fmt"
)

// stepStore is the named-counter table shared with the scenario runner.
type stepStore interface {
	LoadStep(ctx context.Context, name string) (int, bool, error)
	SaveStep(ctx context.Context, name string, step int) error
}

// DBStateStore stores state in the runner_state table, one row per vault
// under "<Name>/<vault>".
type DBStateStore struct {
	Store stepStore
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context, vault string) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	ts, ok, err := s.Store.LoadStep(ctx, s.key(vault))
	if err != nil || !ok {
		return 0, ok, err
	}
	if ts < 0 {
		return 0, false, fmt.Errorf("negative timestamp for %s", vault)
	}
	return uint64(ts), true, nil
}

func (s *DBStateStore) Save(ctx context.Context, vault string, ts uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveStep(ctx, s.key(vault), int(ts))
}

func (s *DBStateStore) key(vault string) string {
	return s.Name + "/" + vault
}
