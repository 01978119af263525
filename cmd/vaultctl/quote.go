package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/amount"
	"liquidityVault/internal/chain"
	"liquidityVault/internal/config"
	"liquidityVault/internal/dex"
	"liquidityVault/internal/guard"
	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

// Vault shares are 18-decimal ERC20s.
const shareDecimals = 18

type quoteReport struct {
	Block       uint64         `json:"block"`
	Timestamp   uint64         `json:"timestamp"`
	Pool        model.PoolMeta `json:"pool"`
	Range       v3math.Range   `json:"range"`
	TotalSupply string         `json:"total_supply"`
	Amount0     string         `json:"amount0"`
	Amount1     string         `json:"amount1"`
	Fees        feeReport      `json:"uncollected_fees"`
	Oracle      oracleReport   `json:"oracle"`
	Deposit     *depositReport `json:"deposit,omitempty"`
}

type feeReport struct {
	Depositors0 string `json:"depositors0"`
	Depositors1 string `json:"depositors1"`
	Manager0    string `json:"manager0"`
	Manager1    string `json:"manager1"`
}

type oracleReport struct {
	Window uint32 `json:"window"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type depositReport struct {
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
	Shares  string `json:"shares"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	poolAddr, err := config.ParseAddress("pool", cfg.Pool)
	if err != nil {
		return err
	}
	vaultAddr, err := config.ParseAddress("vault", cfg.Vault)
	if err != nil {
		return err
	}
	shareAddr := vaultAddr
	if cfg.ShareToken != "" {
		if shareAddr, err = config.ParseAddress("share token", cfg.ShareToken); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	block := cfg.Block
	if block == 0 {
		if block, err = chainClient.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
	}
	ts, err := chainClient.BlockTimestamp(ctx, block)
	if err != nil {
		return fmt.Errorf("block %d timestamp: %w", block, err)
	}
	blockNumber := new(big.Int).SetUint64(block)

	meta, err := dex.NewMetaReader(chainClient, blockNumber, logger).Pool(ctx, poolAddr)
	if err != nil {
		return fmt.Errorf("pool metadata: %w", err)
	}
	pool, err := dex.NewPoolView(ctx, chainClient, poolAddr, blockNumber)
	if err != nil {
		return fmt.Errorf("pool view: %w", err)
	}
	shares := dex.NewSupplyView(chainClient, shareAddr, blockNumber)

	// Roles and the treasury only gate writes, which a view cannot do.
	v, err := vault.New(vault.Config{
		Address: vaultAddr,
		Pool:    pool,
		Token0:  dex.NewTokenView(chainClient, common.HexToAddress(meta.Token0.Address), blockNumber),
		Token1:  dex.NewTokenView(chainClient, common.HexToAddress(meta.Token1.Address), blockNumber),
		Shares:  shares,
		Manager: vaultAddr,
		Keeper:  vaultAddr,
		Range:   v3math.Range{Lower: cfg.Lower, Upper: cfg.Upper},
		Params: vault.Params{
			ManagerFeeBPS:     cfg.ManagerFeeBPS,
			ManagerTreasury:   vaultAddr,
			OracleSlippageBPS: cfg.OracleSlippageBPS,
			OracleWindow:      cfg.OracleWindow,
		},
		Logger: logger,
		Clock:  func() uint64 { return ts },
	})
	if err != nil {
		return err
	}

	report, err := buildQuote(ctx, v, pool, shares, meta, cfg)
	if err != nil {
		return err
	}
	report.Block = block
	report.Timestamp = ts

	logger.Info("quote",
		zap.String("pool", meta.Address),
		zap.String("vault", vaultAddr.Hex()),
		zap.Uint64("block", block),
		zap.Bool("oracle_ok", report.Oracle.OK),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func buildQuote(ctx context.Context, v *vault.Vault, pool *dex.PoolView, shares *dex.SupplyView, meta model.PoolMeta, cfg config.QuoteConfig) (quoteReport, error) {
	dec0, dec1 := meta.Token0.Decimals, meta.Token1.Decimals
	report := quoteReport{Pool: meta, Range: v.Range()}

	slot0, err := pool.Slot0(ctx)
	if err != nil {
		return quoteReport{}, err
	}
	meta.Spot = &model.SpotPrice{
		SqrtPriceX96: slot0.SqrtPriceX96.Dec(),
		Tick:         slot0.Tick,
		Price:        amount.Price(slot0.SqrtPriceX96, dec0, dec1),
	}
	report.Pool = meta

	supply, err := shares.TotalSupply(ctx)
	if err != nil {
		return quoteReport{}, fmt.Errorf("total supply: %w", err)
	}
	report.TotalSupply = amount.Format(supply, shareDecimals)

	amount0, amount1, err := v.UnderlyingBalances(ctx)
	if err != nil {
		return quoteReport{}, fmt.Errorf("underlying balances: %w", err)
	}
	report.Amount0 = amount.Format(amount0, dec0)
	report.Amount1 = amount.Format(amount1, dec1)

	accrued, err := v.AccruedFees(ctx)
	if err != nil {
		return quoteReport{}, fmt.Errorf("accrued fees: %w", err)
	}
	report.Fees = feeReport{
		Depositors0: amount.Format(accrued.Depositors0, dec0),
		Depositors1: amount.Format(accrued.Depositors1, dec1),
		Manager0:    amount.Format(accrued.Manager0, dec0),
		Manager1:    amount.Format(accrued.Manager1, dec1),
	}

	report.Oracle = oracleReport{Window: cfg.OracleWindow, OK: true}
	if err := guard.CheckOracle(ctx, pool, slot0.SqrtPriceX96, cfg.OracleWindow, cfg.OracleSlippageBPS); err != nil {
		if !errors.Is(err, guard.ErrOracleDeviation) && !errors.Is(err, guard.ErrInsufficientObservations) {
			return quoteReport{}, fmt.Errorf("oracle: %w", err)
		}
		report.Oracle.OK = false
		report.Oracle.Error = err.Error()
	}

	if cfg.Amount0Max == "" && cfg.Amount1Max == "" {
		return report, nil
	}
	max0, err := amount.Parse(cfg.Amount0Max, dec0)
	if err != nil {
		return quoteReport{}, err
	}
	max1, err := amount.Parse(cfg.Amount1Max, dec1)
	if err != nil {
		return quoteReport{}, err
	}
	quote, err := v.MintAmounts(ctx, max0, max1)
	if err != nil {
		return quoteReport{}, fmt.Errorf("mint amounts: %w", err)
	}
	report.Deposit = &depositReport{
		Amount0: amount.Format(quote.Amount0, dec0),
		Amount1: amount.Format(quote.Amount1, dec1),
		Shares:  amount.Format(quote.MintAmount, shareDecimals),
	}
	return report, nil
}
