package fees

import (
	"errors"

	"github.com/holiman/uint256"
)

// MaxBPS is 100% in basis points.
const MaxBPS = 10_000

var ErrFeeRateTooHigh = errors.New("fee rate above 100%")

// Split is a collected fee divided between the manager and depositors.
type Split struct {
	Manager    *uint256.Int
	Depositors *uint256.Int
}

// SplitFee gives the manager floor(fee * feeBPS / MaxBPS) and leaves the
// remainder with depositors.
func SplitFee(fee *uint256.Int, feeBPS uint16) (Split, error) {
	if feeBPS > MaxBPS {
		return Split{}, ErrFeeRateTooHigh
	}
	// feeBPS <= MaxBPS so the result never exceeds fee.
	manager, _ := new(uint256.Int).MulDivOverflow(fee, uint256.NewInt(uint64(feeBPS)), uint256.NewInt(MaxBPS))
	return Split{
		Manager:    manager,
		Depositors: new(uint256.Int).Sub(fee, manager),
	}, nil
}
