package model

// TokenMeta is what a report needs to format raw token amounts.
type TokenMeta struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// PoolMeta describes the pool a vault provides liquidity to. Fee is in
// hundredths of a bip.
type PoolMeta struct {
	Address     string     `json:"address"`
	Token0      TokenMeta  `json:"token0"`
	Token1      TokenMeta  `json:"token1"`
	FeePips     uint32     `json:"fee_pips"`
	TickSpacing int32      `json:"tick_spacing"`
	Spot        *SpotPrice `json:"spot,omitempty"`
}

// SpotPrice is the pool price at the quoted block.
type SpotPrice struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
	// Price is token1 per token0 in whole units.
	Price string `json:"price,omitempty"`
}
