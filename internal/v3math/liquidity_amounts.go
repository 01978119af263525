package v3math

import "github.com/holiman/uint256"

// LiquidityForAmount0 returns the liquidity supported by amount0 between the two prices, rounded down.
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return new(uint256.Int), nil
	}
	intermediate, err := MulDiv(sqrtA, sqrtB, Q96)
	if err != nil {
		return nil, err
	}
	liquidity, err := MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return ToUint128(liquidity)
}

// LiquidityForAmount1 returns the liquidity supported by amount1 between the two prices, rounded down.
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return new(uint256.Int), nil
	}
	liquidity, err := MulDiv(amount1, Q96, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return ToUint128(liquidity)
}

// LiquidityForAmounts returns the maximum liquidity obtainable at sqrtP for the
// range [sqrtA, sqrtB] without exceeding either amount. Rounds down.
func LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)

	switch {
	case !sqrtP.Gt(sqrtA):
		return LiquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Lt(sqrtB):
		l0, err := LiquidityForAmount0(sqrtP, sqrtB, amount0)
		if err != nil {
			return nil, err
		}
		l1, err := LiquidityForAmount1(sqrtA, sqrtP, amount1)
		if err != nil {
			return nil, err
		}
		return Min(l0, l1), nil
	default:
		return LiquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

// AmountsForLiquidity returns the token amounts represented by liquidity at
// sqrtP across [sqrtA, sqrtB]. Amounts paid out use roundUp=false; amounts
// owed by a depositor use roundUp=true.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (amount0, amount1 *uint256.Int, err error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	amount0, amount1 = new(uint256.Int), new(uint256.Int)

	switch {
	case !sqrtP.Gt(sqrtA):
		amount0, err = GetAmount0Delta(sqrtA, sqrtB, liquidity, roundUp)
	case sqrtP.Lt(sqrtB):
		amount0, err = GetAmount0Delta(sqrtP, sqrtB, liquidity, roundUp)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = GetAmount1Delta(sqrtA, sqrtP, liquidity, roundUp)
	default:
		amount1, err = GetAmount1Delta(sqrtA, sqrtB, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
