package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"liquidityVault/internal/model"
)

// Accumulator holds running totals for one vault window.
type Accumulator struct {
	Vault        string
	WindowStart  uint64
	WindowEnd    uint64
	LastTS       uint64
	Deposits     uint64
	Withdrawals  uint64
	Rebalances   uint64
	Swaps        uint64
	SharesMinted *big.Int
	SharesBurned *big.Int
	Amount0In    *big.Int
	Amount1In    *big.Int
	Amount0Out   *big.Int
	Amount1Out   *big.Int
	Fee0         *big.Int
	Fee1         *big.Int
	Manager0     *big.Int
	Manager1     *big.Int
}

func NewAccumulator(record model.VaultEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		Vault:        record.Vault,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		LastTS:       record.Timestamp,
		SharesMinted: big.NewInt(0),
		SharesBurned: big.NewInt(0),
		Amount0In:    big.NewInt(0),
		Amount1In:    big.NewInt(0),
		Amount0Out:   big.NewInt(0),
		Amount1Out:   big.NewInt(0),
		Fee0:         big.NewInt(0),
		Fee1:         big.NewInt(0),
		Manager0:     big.NewInt(0),
		Manager1:     big.NewInt(0),
	}
}

// AddEvent folds one event into the window. A payload that fails to decode
// leaves the totals untouched.
func (a *Accumulator) AddEvent(record model.VaultEventRecord) error {
	switch record.EventName {
	case model.EventMinted:
		var minted model.MintedData
		if err := decode(record, &minted); err != nil {
			return err
		}
		if err := addAll(
			[]*big.Int{a.SharesMinted, a.Amount0In, a.Amount1In},
			minted.MintAmount, minted.Amount0In, minted.Amount1In,
		); err != nil {
			return err
		}
		a.Deposits++
	case model.EventBurned:
		var burned model.BurnedData
		if err := decode(record, &burned); err != nil {
			return err
		}
		if err := addAll(
			[]*big.Int{a.SharesBurned, a.Amount0Out, a.Amount1Out},
			burned.BurnAmount, burned.Amount0Out, burned.Amount1Out,
		); err != nil {
			return err
		}
		a.Withdrawals++
	case model.EventFeesEarned:
		var fees model.FeesEarnedData
		if err := decode(record, &fees); err != nil {
			return err
		}
		if err := addAll(
			[]*big.Int{a.Fee0, a.Fee1, a.Manager0, a.Manager1},
			fees.Fee0, fees.Fee1, fees.Manager0, fees.Manager1,
		); err != nil {
			return err
		}
	case model.EventRebalance:
		a.Rebalances++
	case model.EventSwapped:
		a.Swaps++
	}

	if record.Timestamp > a.LastTS {
		a.LastTS = record.Timestamp
	}
	return nil
}

// NetFees returns the fees left to depositors after the manager's cut.
func (a *Accumulator) NetFees() (*big.Int, *big.Int) {
	return new(big.Int).Sub(a.Fee0, a.Manager0), new(big.Int).Sub(a.Fee1, a.Manager1)
}

func decode(record model.VaultEventRecord, out interface{}) error {
	if err := json.Unmarshal(record.Decoded, out); err != nil {
		return fmt.Errorf("decode %s: %w", record.EventName, err)
	}
	return nil
}

// addAll parses every value before touching any target.
func addAll(targets []*big.Int, values ...string) error {
	parsed := make([]*big.Int, len(values))
	for i, value := range values {
		v, err := parseBigInt(value)
		if err != nil {
			return err
		}
		parsed[i] = v
	}
	for i, v := range parsed {
		targets[i].Add(targets[i], v)
	}
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
