package model

// VaultState is a point-in-time view of a vault, recorded after each
// simulation step.
type VaultState struct {
	Vault        string `json:"vault"`
	Scenario     string `json:"scenario"`
	Step         int    `json:"step"`
	Action       string `json:"action"`
	TickLower    int32  `json:"tick_lower"`
	TickUpper    int32  `json:"tick_upper"`
	Liquidity    string `json:"liquidity"`
	TotalSupply  string `json:"total_supply"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	Manager0     string `json:"manager0"`
	Manager1     string `json:"manager1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
	Timestamp    uint64 `json:"timestamp"`
}
