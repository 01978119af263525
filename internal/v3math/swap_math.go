package v3math

import "github.com/holiman/uint256"

// FeeDenominator is the unit of pool fees (pips).
const FeeDenominator = 1_000_000

// SwapStep is the outcome of swapping within a single liquidity segment.
type SwapStep struct {
	SqrtPriceNext *uint256.Int
	AmountIn      *uint256.Int
	AmountOut     *uint256.Int
	FeeAmount     *uint256.Int
}

// ComputeSwapStep swaps an exact input amount from sqrtCurrent toward
// sqrtTarget with constant liquidity, charging feePips on the input.
func ComputeSwapStep(sqrtCurrent, sqrtTarget, liquidity, amountRemaining *uint256.Int, feePips uint32) (SwapStep, error) {
	zeroForOne := !sqrtCurrent.Lt(sqrtTarget)
	feeComplement := uint256.NewInt(uint64(FeeDenominator - feePips))

	remainingLessFee, err := MulDiv(amountRemaining, feeComplement, uint256.NewInt(FeeDenominator))
	if err != nil {
		return SwapStep{}, err
	}

	var amountIn *uint256.Int
	if zeroForOne {
		amountIn, err = GetAmount0Delta(sqrtTarget, sqrtCurrent, liquidity, true)
	} else {
		amountIn, err = GetAmount1Delta(sqrtCurrent, sqrtTarget, liquidity, true)
	}
	if err != nil {
		return SwapStep{}, err
	}

	next := new(uint256.Int).Set(sqrtTarget)
	if remainingLessFee.Lt(amountIn) {
		next, err = GetNextSqrtPriceFromInput(sqrtCurrent, liquidity, remainingLessFee, zeroForOne)
		if err != nil {
			return SwapStep{}, err
		}
	}
	reachedTarget := next.Eq(sqrtTarget)

	var amountOut *uint256.Int
	if zeroForOne {
		if !reachedTarget {
			if amountIn, err = GetAmount0Delta(next, sqrtCurrent, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		amountOut, err = GetAmount1Delta(next, sqrtCurrent, liquidity, false)
	} else {
		if !reachedTarget {
			if amountIn, err = GetAmount1Delta(sqrtCurrent, next, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		amountOut, err = GetAmount0Delta(sqrtCurrent, next, liquidity, false)
	}
	if err != nil {
		return SwapStep{}, err
	}

	var feeAmount *uint256.Int
	if !reachedTarget {
		feeAmount = new(uint256.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount, err = MulDivRoundingUp(amountIn, uint256.NewInt(uint64(feePips)), feeComplement)
		if err != nil {
			return SwapStep{}, err
		}
	}

	return SwapStep{
		SqrtPriceNext: next,
		AmountIn:      amountIn,
		AmountOut:     amountOut,
		FeeAmount:     feeAmount,
	}, nil
}
