package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"reflect"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
)

// maxTokenDecimals keeps 10^decimals inside uint256.
const maxTokenDecimals = 77

// ContractCaller performs read-only contract calls. chain.Client
// implements it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MetaReader loads pool and token metadata at a fixed block. Token
// metadata is remembered per address.
type MetaReader struct {
	caller ContractCaller
	block  *big.Int
	logger *zap.Logger

	mu     sync.Mutex
	tokens map[common.Address]model.TokenMeta
}

// NewMetaReader pins reads to block; nil means latest.
func NewMetaReader(caller ContractCaller, block *big.Int, logger *zap.Logger) *MetaReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetaReader{caller: caller, block: block, logger: logger, tokens: make(map[common.Address]model.TokenMeta)}
}

// Pool reads the pool's immutable fields and both tokens.
func (r *MetaReader) Pool(ctx context.Context, pool common.Address) (model.PoolMeta, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	first := make(map[string]interface{}, 4)
	for _, method := range []string{"token0", "token1", "fee", "tickSpacing"} {
		values, err := callMethod(ctx, r.caller, pool, poolABI, method, r.block)
		if err != nil {
			return model.PoolMeta{}, err
		}
		first[method] = values[0]
	}

	token0, err := asAddress(first["token0"])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(first["token1"])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token1: %w", err)
	}
	fee, err := toBig(first["fee"])
	if err != nil || !fee.IsUint64() || fee.Uint64() >= 1_000_000 {
		return model.PoolMeta{}, fmt.Errorf("fee %v out of range", first["fee"])
	}
	spacing, err := toBig(first["tickSpacing"])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	tickSpacing, err := int24FromBig(spacing)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	if tickSpacing <= 0 {
		return model.PoolMeta{}, fmt.Errorf("tick spacing %d not positive", tickSpacing)
	}

	meta := model.PoolMeta{
		Address:     pool.Hex(),
		FeePips:     uint32(fee.Uint64()),
		TickSpacing: tickSpacing,
	}
	if meta.Token0, err = r.Token(ctx, token0); err != nil {
		return model.PoolMeta{}, err
	}
	if meta.Token1, err = r.Token(ctx, token1); err != nil {
		return model.PoolMeta{}, err
	}
	return meta, nil
}

// Token reads decimals and symbol. Decimals are required to format
// amounts; the symbol is best effort, trying the bytes32 form when the
// string form fails.
func (r *MetaReader) Token(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	r.mu.Lock()
	cached, ok := r.tokens[token]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	parsed, err := ERC20ABI()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, token, parsed, "decimals", r.block)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("token %s: %w", token.Hex(), err)
	}
	decimals, err := toBig(values[0])
	if err != nil || decimals.Sign() < 0 || decimals.Cmp(big.NewInt(maxTokenDecimals)) > 0 {
		return model.TokenMeta{}, fmt.Errorf("token %s: decimals %v out of range", token.Hex(), values[0])
	}
	meta := model.TokenMeta{Address: token.Hex(), Decimals: uint8(decimals.Uint64())}
	meta.Symbol = r.symbol(ctx, token, parsed)

	r.mu.Lock()
	r.tokens[token] = meta
	r.mu.Unlock()
	return meta, nil
}

func (r *MetaReader) symbol(ctx context.Context, token common.Address, parsed abi.ABI) string {
	values, err := callMethod(ctx, r.caller, token, parsed, "symbol", r.block)
	if err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	legacy, lerr := erc20Bytes32Symbol.get()
	if lerr != nil {
		return ""
	}
	values, berr := callMethod(ctx, r.caller, token, legacy, "symbol", r.block)
	if berr != nil {
		r.logger.Debug("symbol unavailable", zap.String("token", token.Hex()), zap.Error(err))
		return ""
	}
	if raw, ok := values[0].([32]byte); ok {
		return string(bytes.TrimRight(raw[:], "\x00"))
	}
	return ""
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: no values", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	if addr, ok := value.(common.Address); ok {
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("unsupported address type %T", value)
}

// toBig accepts the integer shapes the ABI decoder produces: *big.Int for
// wide types and native ints for 8 to 64 bits.
func toBig(value interface{}) (*big.Int, error) {
	if b, ok := value.(*big.Int); ok {
		return new(big.Int).Set(b), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), nil
	default:
		return nil, fmt.Errorf("unsupported integer type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	if value.Cmp(big.NewInt(-1<<23)) < 0 || value.Cmp(big.NewInt(1<<23-1)) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value)
	}
	return int32(value.Int64()), nil
}
