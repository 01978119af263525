package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"liquidityVault/internal/model"
	"liquidityVault/internal/storage"
)

const (
	tvlMethodState = "state_snapshot"
	tvlMethodNone  = "unavailable"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom overrides the stored state for every vault.
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator rolls vault events into fixed windows, one open window per
// vault.
type Aggregator struct {
	cfg          Config
	sink         storage.MetricsSink
	logger       *zap.Logger
	tvl          *tvlIndex
	accumulators map[string]*Accumulator
	starts       map[string]uint64
	lastSeq      map[string]uint64
	maxTs        map[string]uint64
}

func NewAggregator(cfg Config, sink storage.MetricsSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		starts:       make(map[string]uint64),
		lastSeq:      make(map[string]uint64),
		maxTs:        make(map[string]uint64),
	}
}

// Run aggregates a vault events JSONL file. When statesPath is set, each
// window's TVL is taken from the last state snapshot recorded before the
// window closed.
func (a *Aggregator) Run(ctx context.Context, inputPath, statesPath string) error {
	if a.sink == nil {
		return fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	if statesPath != "" {
		states, err := storage.ReadStates(statesPath)
		if err != nil {
			return err
		}
		if a.tvl, err = newTVLIndex(states); err != nil {
			return err
		}
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.VaultWindowMetrics, 0, a.cfg.BatchSize)
	var total, windows, skipped, duplicate, failed int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.VaultEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode vault event", zap.Error(err))
			continue
		}

		key := vaultKey(record.Vault)
		startTs, err := a.startTimestamp(ctx, key)
		if err != nil {
			return err
		}
		if record.Timestamp <= startTs {
			skipped++
			continue
		}
		// A rerun without a checkpoint appends the same events again.
		if record.Seq <= a.lastSeq[key] {
			duplicate++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		acc := a.accumulators[key]
		if acc != nil && windowStart < acc.WindowStart {
			failed++
			a.logger.Warn("out of order event",
				zap.String("vault", record.Vault),
				zap.Uint64("seq", record.Seq),
				zap.Uint64("timestamp", record.Timestamp),
			)
			continue
		}
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[key] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.flushAccumulator(acc))
			windows++
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[key] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("vault", record.Vault), zap.String("event", record.EventName))
			continue
		}
		a.lastSeq[key] = record.Seq
		if record.Timestamp > a.maxTs[key] {
			a.maxTs[key] = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.PutWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(acc))
		windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.sink.PutWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("duplicate", duplicate),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) startTimestamp(ctx context.Context, key string) (uint64, error) {
	if ts, ok := a.starts[key]; ok {
		return ts, nil
	}
	var start uint64
	switch {
	case a.cfg.RecomputeFrom > 0:
		start = a.cfg.RecomputeFrom - 1
	case a.cfg.StateStore != nil:
		last, ok, err := a.cfg.StateStore.Load(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("load state %s: %w", key, err)
		}
		if ok {
			start = last
		}
	}
	a.starts[key] = start
	return start, nil
}

// saveState records, per vault, the last timestamp whose window is closed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	for key, maxTs := range a.maxTs {
		safeTs := maxTs
		if acc := a.accumulators[key]; acc != nil {
			safeTs = a.starts[key]
			if acc.WindowStart > 0 && acc.WindowStart-1 > safeTs {
				safeTs = acc.WindowStart - 1
			}
		}
		if err := a.cfg.StateStore.Save(ctx, key, safeTs); err != nil {
			return fmt.Errorf("save state %s: %w", key, err)
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.VaultWindowMetrics {
	metrics := model.VaultWindowMetrics{
		Vault:          acc.Vault,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		Deposits:       acc.Deposits,
		Withdrawals:    acc.Withdrawals,
		Rebalances:     acc.Rebalances,
		Swaps:          acc.Swaps,
		SharesMinted:   stringOrZero(acc.SharesMinted),
		SharesBurned:   stringOrZero(acc.SharesBurned),
		Amount0In:      stringOrZero(acc.Amount0In),
		Amount1In:      stringOrZero(acc.Amount1In),
		Amount0Out:     stringOrZero(acc.Amount0Out),
		Amount1Out:     stringOrZero(acc.Amount1Out),
		Fee0:           stringOrZero(acc.Fee0),
		Fee1:           stringOrZero(acc.Fee1),
		Manager0:       stringOrZero(acc.Manager0),
		Manager1:       stringOrZero(acc.Manager1),
		TVLMethod:      tvlMethodNone,
	}

	tvl0, tvl1, ok := a.tvl.at(acc.Vault, acc.WindowEnd)
	if !ok {
		return metrics
	}
	tvl0Str, tvl1Str := tvl0.String(), tvl1.String()
	metrics.TVL0 = &tvl0Str
	metrics.TVL1 = &tvl1Str
	metrics.TVLMethod = tvlMethodState

	net0, net1 := acc.NetFees()
	metrics.FeeRate0, metrics.FeeRate1 = computeFeeRates(net0, net1, tvl0, tvl1)
	metrics.APR = computeAPR(metrics.FeeRate0, metrics.FeeRate1, a.cfg.WindowSeconds)
	return metrics
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func vaultKey(address string) string {
	return strings.ToLower(address)
}
