package model

import "time"

// VaultWindowMetrics stores aggregated vault activity for one time window.
// Amounts are raw token units.
type VaultWindowMetrics struct {
	Vault          string    `json:"vault"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Deposits       uint64    `json:"deposits"`
	Withdrawals    uint64    `json:"withdrawals"`
	Rebalances     uint64    `json:"rebalances"`
	Swaps          uint64    `json:"swaps"`
	SharesMinted   string    `json:"shares_minted"`
	SharesBurned   string    `json:"shares_burned"`
	Amount0In      string    `json:"amount0_in"`
	Amount1In      string    `json:"amount1_in"`
	Amount0Out     string    `json:"amount0_out"`
	Amount1Out     string    `json:"amount1_out"`
	Fee0           string    `json:"fee0"`
	Fee1           string    `json:"fee1"`
	Manager0       string    `json:"manager0"`
	Manager1       string    `json:"manager1"`
	TVL0           *string   `json:"tvl0,omitempty"`
	TVL1           *string   `json:"tvl1,omitempty"`
	FeeRate0       *string   `json:"fee_rate0,omitempty"`
	FeeRate1       *string   `json:"fee_rate1,omitempty"`
	APR            *string   `json:"apr,omitempty"`
	TVLMethod      string    `json:"tvl_method"`
}
