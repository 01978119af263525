package model

// Vault event names.
const (
	EventMinted               = "Minted"
	EventBurned               = "Burned"
	EventFeesEarned           = "FeesEarned"
	EventSwapped              = "Swapped"
	EventRebalance            = "Rebalance"
	EventParamsUpdated        = "ParamsUpdated"
	EventManagerFeesWithdrawn = "ManagerFeesWithdrawn"
)

// MintedData is the payload of a deposit.
type MintedData struct {
	Caller          string `json:"caller"`
	Receiver        string `json:"receiver"`
	MintAmount      string `json:"mint_amount"`
	Amount0In       string `json:"amount0_in"`
	Amount1In       string `json:"amount1_in"`
	LiquidityMinted string `json:"liquidity_minted"`
}

// BurnedData is the payload of a withdrawal.
type BurnedData struct {
	Caller          string `json:"caller"`
	Receiver        string `json:"receiver"`
	BurnAmount      string `json:"burn_amount"`
	Amount0Out      string `json:"amount0_out"`
	Amount1Out      string `json:"amount1_out"`
	LiquidityBurned string `json:"liquidity_burned"`
	Payout          string `json:"payout"`
}

// FeesEarnedData records fees collected from the pool and the manager's cut.
type FeesEarnedData struct {
	Fee0     string `json:"fee0"`
	Fee1     string `json:"fee1"`
	Manager0 string `json:"manager0"`
	Manager1 string `json:"manager1"`
}

// SwappedData is an inventory swap executed by the vault. AmountIn is
// the input asked for; a rebalance swap stopped by its price limit pays
// less, as the deltas show.
type SwappedData struct {
	ZeroForOne     bool   `json:"zero_for_one"`
	AmountIn       string `json:"amount_in"`
	Amount0        string `json:"amount0"`
	Amount1        string `json:"amount1"`
	SqrtPriceLimit string `json:"sqrt_price_limit"`
	SqrtPriceAfter string `json:"sqrt_price_after"`
}

// RebalanceData is emitted by both rebalance flavours.
type RebalanceData struct {
	Caller          string `json:"caller"`
	TickLower       int32  `json:"tick_lower"`
	TickUpper       int32  `json:"tick_upper"`
	LiquidityBefore string `json:"liquidity_before"`
	LiquidityAfter  string `json:"liquidity_after"`
	RangeChanged    bool   `json:"range_changed"`
}

// ParamsUpdatedData is the full parameter set after an update.
type ParamsUpdatedData struct {
	ManagerFeeBPS        uint16 `json:"manager_fee_bps"`
	ManagerTreasury      string `json:"manager_treasury"`
	UserSlippageBPS      uint16 `json:"user_slippage_bps"`
	RebalanceSlippageBPS uint16 `json:"rebalance_slippage_bps"`
	OracleSlippageBPS    uint16 `json:"oracle_slippage_bps"`
	OracleWindow         uint32 `json:"oracle_window"`
}

// ManagerFeesWithdrawnData records a payout of accumulated manager fees.
type ManagerFeesWithdrawnData struct {
	Treasury string `json:"treasury"`
	Amount0  string `json:"amount0"`
	Amount1  string `json:"amount1"`
}
