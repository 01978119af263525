package aggregate

import (
	"fmt"
	"math/big"
	"sort"

	"liquidityVault/internal/model"
)

type tvlPoint struct {
	ts      uint64
	amount0 *big.Int
	amount1 *big.Int
}

// tvlIndex answers "what did the vault hold when this window closed" from
// recorded state snapshots.
type tvlIndex struct {
	byVault map[string][]tvlPoint
}

func newTVLIndex(states []model.VaultState) (*tvlIndex, error) {
	idx := &tvlIndex{byVault: make(map[string][]tvlPoint)}
	for i, st := range states {
		amount0, err := parseBigInt(st.Amount0)
		if err != nil {
			return nil, fmt.Errorf("state %d amount0: %w", i, err)
		}
		amount1, err := parseBigInt(st.Amount1)
		if err != nil {
			return nil, fmt.Errorf("state %d amount1: %w", i, err)
		}
		key := vaultKey(st.Vault)
		idx.byVault[key] = append(idx.byVault[key], tvlPoint{ts: st.Timestamp, amount0: amount0, amount1: amount1})
	}
	for _, points := range idx.byVault {
		sort.SliceStable(points, func(i, j int) bool { return points[i].ts < points[j].ts })
	}
	return idx, nil
}

// at returns the last snapshot taken before end.
func (t *tvlIndex) at(vault string, end uint64) (*big.Int, *big.Int, bool) {
	if t == nil {
		return nil, nil, false
	}
	points := t.byVault[vaultKey(vault)]
	i := sort.Search(len(points), func(i int) bool { return points[i].ts >= end })
	if i == 0 {
		return nil, nil, false
	}
	p := points[i-1]
	return p.amount0, p.amount1, true
}
