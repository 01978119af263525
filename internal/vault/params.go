package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"liquidityVault/internal/fees"
	"liquidityVault/internal/guard"
)

// Params are the manager-controlled risk parameters.
type Params struct {
	ManagerFeeBPS        uint16         `mapstructure:"manager-fee-bps"`
	ManagerTreasury      common.Address `mapstructure:"-"`
	UserSlippageBPS      uint16         `mapstructure:"user-slippage-bps"`
	RebalanceSlippageBPS uint16         `mapstructure:"rebalance-slippage-bps"`
	OracleSlippageBPS    uint16         `mapstructure:"oracle-slippage-bps"`
	OracleWindow         uint32         `mapstructure:"oracle-window"`
}

func (p Params) Validate() error {
	if p.ManagerFeeBPS > fees.MaxBPS {
		return fmt.Errorf("manager fee %d bps: %w", p.ManagerFeeBPS, ErrFeeRateTooHigh)
	}
	if p.ManagerTreasury == (common.Address{}) {
		return fmt.Errorf("manager treasury: %w", ErrZeroAddress)
	}
	for _, tol := range []struct {
		name string
		bps  uint16
	}{
		{"user slippage", p.UserSlippageBPS},
		{"rebalance slippage", p.RebalanceSlippageBPS},
		{"oracle slippage", p.OracleSlippageBPS},
	} {
		if tol.bps >= guard.MaxBPS {
			return fmt.Errorf("%s %d bps: %w", tol.name, tol.bps, ErrSlippageTooHigh)
		}
	}
	if p.OracleWindow == 0 {
		return guard.ErrInvalidOracleWindow
	}
	return nil
}

// ParamsUpdate changes the non-nil fields of Params.
type ParamsUpdate struct {
	ManagerFeeBPS        *uint16
	ManagerTreasury      *common.Address
	UserSlippageBPS      *uint16
	RebalanceSlippageBPS *uint16
	OracleSlippageBPS    *uint16
	OracleWindow         *uint32
}

func (u ParamsUpdate) apply(p Params) Params {
	if u.ManagerFeeBPS != nil {
		p.ManagerFeeBPS = *u.ManagerFeeBPS
	}
	if u.ManagerTreasury != nil {
		p.ManagerTreasury = *u.ManagerTreasury
	}
	if u.UserSlippageBPS != nil {
		p.UserSlippageBPS = *u.UserSlippageBPS
	}
	if u.RebalanceSlippageBPS != nil {
		p.RebalanceSlippageBPS = *u.RebalanceSlippageBPS
	}
	if u.OracleSlippageBPS != nil {
		p.OracleSlippageBPS = *u.OracleSlippageBPS
	}
	if u.OracleWindow != nil {
		p.OracleWindow = *u.OracleWindow
	}
	return p
}
