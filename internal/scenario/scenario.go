// Package scenario replays a scripted sequence of vault operations against
// an in-memory pool.
package scenario

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

// ShareDecimals is the unit scale of vault shares in scenarios.
const ShareDecimals = 18

// Step actions.
const (
	ActionDeposit      = "deposit"
	ActionWithdraw     = "withdraw"
	ActionSwap         = "swap"
	ActionAdvance      = "advance"
	ActionRebalance    = "rebalance"
	ActionRange        = "range"
	ActionWithdrawFees = "withdraw-fees"
	ActionParams       = "params"
)

// Scenario is a pool setup, a vault and the steps run against them.
type Scenario struct {
	Name     string        `mapstructure:"name"`
	Pool     PoolSpec      `mapstructure:"pool"`
	Vault    VaultSpec     `mapstructure:"vault"`
	Accounts []AccountSpec `mapstructure:"accounts"`
	Steps    []Step        `mapstructure:"steps"`
}

type TokenSpec struct {
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
}

// PositionSpec is background liquidity owned by a passive LP.
type PositionSpec struct {
	Lower     int32  `mapstructure:"lower"`
	Upper     int32  `mapstructure:"upper"`
	Liquidity string `mapstructure:"liquidity"`
}

type PoolSpec struct {
	Token0      TokenSpec `mapstructure:"token0"`
	Token1      TokenSpec `mapstructure:"token1"`
	FeePips     uint32    `mapstructure:"fee-pips"`
	TickSpacing int32     `mapstructure:"tick-spacing"`
	Tick        int32     `mapstructure:"tick"`
	Start       uint64    `mapstructure:"start"`
	// Warmup seconds pass after the background liquidity is added so the
	// oracle has history before the first step.
	Warmup    uint64         `mapstructure:"warmup"`
	Positions []PositionSpec `mapstructure:"positions"`
}

type VaultSpec struct {
	Range  v3math.Range `mapstructure:"range"`
	Params vault.Params `mapstructure:"params"`
}

// AccountSpec funds a named account. Amounts are in token units.
type AccountSpec struct {
	Name    string `mapstructure:"name"`
	Amount0 string `mapstructure:"amount0"`
	Amount1 string `mapstructure:"amount1"`
}

// ParamsPatch is the params step payload.
type ParamsPatch struct {
	ManagerFeeBPS        *uint16 `mapstructure:"manager-fee-bps"`
	ManagerTreasury      *string `mapstructure:"manager-treasury"`
	UserSlippageBPS      *uint16 `mapstructure:"user-slippage-bps"`
	RebalanceSlippageBPS *uint16 `mapstructure:"rebalance-slippage-bps"`
	OracleSlippageBPS    *uint16 `mapstructure:"oracle-slippage-bps"`
	OracleWindow         *uint32 `mapstructure:"oracle-window"`
}

// Step is one scripted action. Which fields apply depends on Action.
// Share amounts use 18 decimals.
type Step struct {
	Action         string       `mapstructure:"action"`
	Account        string       `mapstructure:"account"`
	Shares         string       `mapstructure:"shares"`
	Amount0        string       `mapstructure:"amount0"`
	Amount1        string       `mapstructure:"amount1"`
	Amount         string       `mapstructure:"amount"`
	ZeroForOne     bool         `mapstructure:"zero-for-one"`
	Payout         string       `mapstructure:"payout"`
	MaxSlippageBPS uint16       `mapstructure:"max-slippage-bps"`
	Seconds        uint64       `mapstructure:"seconds"`
	Range          v3math.Range `mapstructure:"range"`
	MinLiquidity   string       `mapstructure:"min-liquidity"`
	Params         ParamsPatch  `mapstructure:"params"`
	ExpectError    string       `mapstructure:"expect-error"`
}

// Load reads a scenario file in any format viper understands.
func Load(path string) (Scenario, error) {
	if path == "" {
		return Scenario{}, fmt.Errorf("scenario path is required")
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pool.token0.symbol", "TOKEN0")
	v.SetDefault("pool.token0.decimals", 18)
	v.SetDefault("pool.token1.symbol", "TOKEN1")
	v.SetDefault("pool.token1.decimals", 18)
	v.SetDefault("pool.fee-pips", 3000)
	v.SetDefault("pool.tick-spacing", 60)
	v.SetDefault("pool.start", 1_700_000_000)
	v.SetDefault("pool.warmup", 3600)
	v.SetDefault("vault.params.manager-fee-bps", 1000)
	v.SetDefault("vault.params.user-slippage-bps", 100)
	v.SetDefault("vault.params.rebalance-slippage-bps", 200)
	v.SetDefault("vault.params.oracle-slippage-bps", 100)
	v.SetDefault("vault.params.oracle-window", 300)
}

// Validate checks the parts of a scenario that do not need a pool.
func (sc Scenario) Validate() error {
	if strings.TrimSpace(sc.Name) == "" {
		return fmt.Errorf("scenario name is required")
	}
	if sc.Pool.TickSpacing <= 0 {
		return fmt.Errorf("tick spacing %d: %w", sc.Pool.TickSpacing, v3math.ErrMisalignedTick)
	}
	if err := sc.Vault.Range.Validate(sc.Pool.TickSpacing); err != nil {
		return fmt.Errorf("vault range: %w", err)
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	seen := make(map[string]struct{}, len(sc.Accounts))
	for _, acct := range sc.Accounts {
		if acct.Name == "" {
			return fmt.Errorf("account name is required")
		}
		if _, dup := seen[acct.Name]; dup {
			return fmt.Errorf("account %q defined twice", acct.Name)
		}
		seen[acct.Name] = struct{}{}
	}
	for i, step := range sc.Steps {
		switch step.Action {
		case ActionDeposit, ActionWithdraw, ActionSwap:
			if step.Account == "" {
				return fmt.Errorf("step %d (%s): account is required", i, step.Action)
			}
		case ActionAdvance, ActionRebalance, ActionRange, ActionWithdrawFees, ActionParams:
		default:
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
	}
	return nil
}
