package vault

import "errors"

// Validation.
var (
	ErrZeroMintAmount   = errors.New("mint amount is zero")
	ErrZeroBurnAmount   = errors.New("burn amount is zero")
	ErrZeroAddress      = errors.New("zero address")
	ErrSlippageTooHigh  = errors.New("slippage tolerance too high")
	ErrFeeRateTooHigh   = errors.New("manager fee rate above 100%")
	ErrMissingComponent = errors.New("missing vault component")
)

// Economic safety.
var (
	ErrInitialSharesTooLow   = errors.New("initial mint at or below minimum shares")
	ErrMintZero              = errors.New("mint would deposit nothing")
	ErrBurnZero              = errors.New("burn would withdraw nothing")
	ErrLiquidityNotIncreased = errors.New("rebalance did not increase liquidity")
	ErrLiquidityBelowMinimum = errors.New("liquidity below required minimum")
	ErrCollectShortfall      = errors.New("collected less than burned")
)

// Guards, authorization and identity.
var (
	ErrSlippageExceeded = errors.New("swap price moved beyond slippage limit")
	ErrUnauthorized     = errors.New("caller lacks required role")
	ErrUnexpectedCaller = errors.New("unexpected callback caller")
)
