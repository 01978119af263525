package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityVault/internal/model"
)

// Store persists vault events and state snapshots.
//
// Expected tables:
//
//	vault_events (vault, seq, event_name, ts, payload jsonb) primary key (vault, seq)
//	vault_states (vault, scenario, step, ...) primary key (vault, scenario, step)
//	vault_window_metrics (vault, window_size_seconds, window_start_ts, ...)
//	    primary key (vault, window_size_seconds, window_start_ts)
//	runner_state (name primary key, last_step, updated_at)
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEvents inserts events. Replayed events with a known (vault, seq) are
// left untouched.
func (s *Store) PutEvents(ctx context.Context, events []model.VaultEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		payload, err := json.Marshal(e.Decoded)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", e.EventName, err)
		}
		batch.Queue(`
			INSERT INTO vault_events (vault, seq, event_name, ts, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (vault, seq) DO NOTHING
		`,
			e.Vault,
			int64(e.Seq),
			e.EventName,
			int64(e.Timestamp),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutStates inserts or updates vault state snapshots.
func (s *Store) PutStates(ctx context.Context, states []model.VaultState) error {
	if len(states) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, st := range states {
		batch.Queue(`
			INSERT INTO vault_states (
				vault, scenario, step, action, tick_lower, tick_upper, liquidity, total_supply,
				amount0, amount1, manager0, manager1, sqrt_price_x96, tick, ts, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())
			ON CONFLICT (vault, scenario, step)
			DO UPDATE SET
				action = EXCLUDED.action,
				tick_lower = EXCLUDED.tick_lower,
				tick_upper = EXCLUDED.tick_upper,
				liquidity = EXCLUDED.liquidity,
				total_supply = EXCLUDED.total_supply,
				amount0 = EXCLUDED.amount0,
				amount1 = EXCLUDED.amount1,
				manager0 = EXCLUDED.manager0,
				manager1 = EXCLUDED.manager1,
				sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
				tick = EXCLUDED.tick,
				ts = EXCLUDED.ts,
				updated_at = now()
		`,
			st.Vault,
			st.Scenario,
			st.Step,
			st.Action,
			st.TickLower,
			st.TickUpper,
			st.Liquidity,
			st.TotalSupply,
			st.Amount0,
			st.Amount1,
			st.Manager0,
			st.Manager1,
			st.SqrtPriceX96,
			st.Tick,
			int64(st.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range states {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutWindowMetrics inserts or updates window metrics.
func (s *Store) PutWindowMetrics(ctx context.Context, metrics []model.VaultWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO vault_window_metrics (
				vault, window_size_seconds, window_start_ts, window_end_ts,
				deposits, withdrawals, rebalances, swaps, shares_minted, shares_burned,
				amount0_in, amount1_in, amount0_out, amount1_out, fee0, fee1, manager0, manager1,
				tvl0, tvl1, fee_rate0, fee_rate1, apr, tvl_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,now(),now())
			ON CONFLICT (vault, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				deposits = EXCLUDED.deposits,
				withdrawals = EXCLUDED.withdrawals,
				rebalances = EXCLUDED.rebalances,
				swaps = EXCLUDED.swaps,
				shares_minted = EXCLUDED.shares_minted,
				shares_burned = EXCLUDED.shares_burned,
				amount0_in = EXCLUDED.amount0_in,
				amount1_in = EXCLUDED.amount1_in,
				amount0_out = EXCLUDED.amount0_out,
				amount1_out = EXCLUDED.amount1_out,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				manager0 = EXCLUDED.manager0,
				manager1 = EXCLUDED.manager1,
				tvl0 = EXCLUDED.tvl0,
				tvl1 = EXCLUDED.tvl1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				apr = EXCLUDED.apr,
				tvl_method = EXCLUDED.tvl_method,
				updated_at = now()
		`,
			m.Vault,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.Deposits),
			int64(m.Withdrawals),
			int64(m.Rebalances),
			int64(m.Swaps),
			m.SharesMinted,
			m.SharesBurned,
			m.Amount0In,
			m.Amount1In,
			m.Amount0Out,
			m.Amount1Out,
			m.Fee0,
			m.Fee1,
			m.Manager0,
			m.Manager1,
			m.TVL0,
			m.TVL1,
			m.FeeRate0,
			m.FeeRate1,
			m.APR,
			m.TVLMethod,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadStep returns the last completed step recorded under name.
func (s *Store) LoadStep(ctx context.Context, name string) (int, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var step int
	row := s.pool.QueryRow(ctx, `SELECT last_step FROM runner_state WHERE name=$1`, name)
	if err := row.Scan(&step); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return step, true, nil
}

// SaveStep upserts the last completed step for name.
func (s *Store) SaveStep(ctx context.Context, name string, step int) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runner_state (name, last_step, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_step = EXCLUDED.last_step, updated_at = now()
	`, name, step)
	return err
}
