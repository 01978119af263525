package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/model"
)

// WithdrawManagerBalance pays accumulated manager fees to the treasury.
func (v *Vault) WithdrawManagerBalance(ctx context.Context, caller common.Address) (amount0, amount1 *uint256.Int, err error) {
	err = v.run(ctx, "withdraw_manager_balance", caller, func() error {
		if err := v.requireKeeperOrManager(caller); err != nil {
			return err
		}
		amount0, amount1 = v.managerBalance0, v.managerBalance1
		treasury := v.params.ManagerTreasury

		v.managerBalance0, v.managerBalance1 = new(uint256.Int), new(uint256.Int)
		if err := v.pay(ctx, v.token0, treasury, amount0); err != nil {
			return fmt.Errorf("pay token0: %w", err)
		}
		if err := v.pay(ctx, v.token1, treasury, amount1); err != nil {
			return fmt.Errorf("pay token1: %w", err)
		}
		if amount0.IsZero() && amount1.IsZero() {
			return nil
		}
		v.emit(model.EventManagerFeesWithdrawn, model.ManagerFeesWithdrawnData{
			Treasury: treasury.Hex(),
			Amount0:  amount0.Dec(),
			Amount1:  amount1.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// UpdateParams applies upd after validating the resulting parameter set.
func (v *Vault) UpdateParams(ctx context.Context, caller common.Address, upd ParamsUpdate) (Params, error) {
	err := v.run(ctx, "update_params", caller, func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		next := upd.apply(v.params)
		if err := next.Validate(); err != nil {
			return err
		}
		v.params = next
		v.emit(model.EventParamsUpdated, model.ParamsUpdatedData{
			ManagerFeeBPS:        next.ManagerFeeBPS,
			ManagerTreasury:      next.ManagerTreasury.Hex(),
			UserSlippageBPS:      next.UserSlippageBPS,
			RebalanceSlippageBPS: next.RebalanceSlippageBPS,
			OracleSlippageBPS:    next.OracleSlippageBPS,
			OracleWindow:         next.OracleWindow,
		})
		return nil
	})
	if err != nil {
		return Params{}, err
	}
	return v.params, nil
}
