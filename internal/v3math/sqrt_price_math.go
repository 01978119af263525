package v3math

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrZeroLiquidity = errors.New("liquidity is zero")
	ErrZeroSqrtPrice = errors.New("sqrt price is zero")
	ErrPriceOverflow = errors.New("next sqrt price overflows uint160")
)

func sortRatios(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// GetAmount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB).
func GetAmount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, ErrZeroSqrtPrice
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		inner, err := MulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(inner, sqrtA)
	}

	inner, err := MulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return inner.Div(inner, sqrtA), nil
}

// GetAmount1Delta returns liquidity * (sqrtB - sqrtA).
func GetAmount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

// GetNextSqrtPriceFromInput returns the price after adding amountIn of the
// input token to the pool. Only exact input is supported.
func GetNextSqrtPriceFromInput(sqrtP, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtP.IsZero() {
		return nil, ErrZeroSqrtPrice
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0(sqrtP, liquidity, amountIn)
	}
	return nextSqrtPriceFromAmount1(sqrtP, liquidity, amountIn)
}

// nextSqrtPriceFromAmount0 rounds up: the price moves down less than exact.
func nextSqrtPriceFromAmount0(sqrtP, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtP), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)

	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtP)
	if !overflow {
		denominator, overflow := new(uint256.Int).AddOverflow(numerator1, product)
		if !overflow {
			return MulDivRoundingUp(numerator1, sqrtP, denominator)
		}
	}

	denominator := new(uint256.Int).Div(numerator1, sqrtP)
	denominator.Add(denominator, amount)
	return DivRoundingUp(numerator1, denominator)
}

// nextSqrtPriceFromAmount1 rounds down: the price moves up less than exact.
func nextSqrtPriceFromAmount1(sqrtP, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	var quotient *uint256.Int
	if !amount.Gt(MaxUint160) {
		quotient = new(uint256.Int).Lsh(amount, 96)
		quotient.Div(quotient, liquidity)
	} else {
		var err error
		quotient, err = MulDiv(amount, Q96, liquidity)
		if err != nil {
			return nil, err
		}
	}

	next, overflow := new(uint256.Int).AddOverflow(sqrtP, quotient)
	if overflow || next.Gt(MaxUint160) {
		return nil, ErrPriceOverflow
	}
	return next, nil
}
