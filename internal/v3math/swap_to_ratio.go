package v3math

import "github.com/holiman/uint256"

// ratioProbeLiquidity is the liquidity used to sample the range's token ratio.
var ratioProbeLiquidity = uint256.NewInt(1_000_000_000_000_000_000)

// SwapToRatio estimates the single swap that moves the inventory (amount0,
// amount1) toward the token ratio r needs at sqrtP. Price impact and pool
// fees are ignored, so the result leaves some imbalance behind; callers
// deposit whatever liquidity the post-swap balances support.
func (r Range) SwapToRatio(sqrtP, amount0, amount1 *uint256.Int) (zeroForOne bool, amountIn *uint256.Int, err error) {
	need0, need1, err := r.AmountsForLiquidity(sqrtP, ratioProbeLiquidity, false)
	if err != nil {
		return false, nil, err
	}

	// price of token0 in token1, Q128
	priceX128, err := MulDiv(sqrtP, sqrtP, new(uint256.Int).Lsh(uint256.NewInt(1), 64))
	if err != nil {
		return false, nil, err
	}

	value0, err := MulDiv(amount0, priceX128, Q128)
	if err != nil {
		return false, nil, err
	}
	total, overflow := new(uint256.Int).AddOverflow(value0, amount1)
	if overflow {
		return false, nil, ErrMulDivOverflow
	}

	needValue0, err := MulDiv(need0, priceX128, Q128)
	if err != nil {
		return false, nil, err
	}
	denominator := new(uint256.Int).Add(needValue0, need1)
	if denominator.IsZero() || total.IsZero() {
		return false, new(uint256.Int), nil
	}

	target1, err := MulDiv(total, need1, denominator)
	if err != nil {
		return false, nil, err
	}
	if amount1.Gt(target1) {
		return false, new(uint256.Int).Sub(amount1, target1), nil
	}

	target0, err := MulDiv(new(uint256.Int).Sub(total, target1), Q128, priceX128)
	if err != nil {
		return false, nil, err
	}
	if amount0.Gt(target0) {
		return true, new(uint256.Int).Sub(amount0, target0), nil
	}
	return false, new(uint256.Int), nil
}
