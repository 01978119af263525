package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// QuoteConfig holds settings for quoting a deployed vault position.
type QuoteConfig struct {
	RPCURL     string
	Pool       string
	Vault      string
	ShareToken string
	Lower      int32
	Upper      int32
	// Block pins every read; zero means latest.
	Block             uint64
	Amount0Max        string
	Amount1Max        string
	ManagerFeeBPS     uint16
	OracleWindow      uint32
	OracleSlippageBPS uint16
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond int
	LogLevel          string
}

// SimulateConfig holds settings for replaying scenarios.
type SimulateConfig struct {
	Scenarios  []string
	Out        string
	States     string
	PGDSN      string
	Checkpoint string
	LogLevel   string
}

// AggregateConfig holds settings for rolling vault events into window metrics.
type AggregateConfig struct {
	Input         string
	States        string
	Window        time.Duration
	Out           string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	LogLevel      string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v := viper.New()
	v.SetDefault("manager-fee-bps", 1000)
	v.SetDefault("oracle-window", 300)
	v.SetDefault("oracle-slippage-bps", 100)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("rpc-rps", 20)
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		RPCURL:            v.GetString("rpc"),
		Pool:              v.GetString("pool"),
		Vault:             v.GetString("vault"),
		ShareToken:        v.GetString("share-token"),
		Lower:             v.GetInt32("lower"),
		Upper:             v.GetInt32("upper"),
		Block:             v.GetUint64("block"),
		Amount0Max:        v.GetString("amount0-max"),
		Amount1Max:        v.GetString("amount1-max"),
		ManagerFeeBPS:     uint16(v.GetUint("manager-fee-bps")),
		OracleWindow:      v.GetUint32("oracle-window"),
		OracleSlippageBPS: uint16(v.GetUint("oracle-slippage-bps")),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		RequestsPerSecond: v.GetInt("rpc-rps"),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, nil
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v := viper.New()
	v.SetDefault("out", "./data/vault_events.jsonl")
	v.SetDefault("states", "./data/vault_states.jsonl")
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Scenarios:  getStringSlice(v, "scenario"),
		Out:        v.GetString("out"),
		States:     v.GetString("states"),
		PGDSN:      v.GetString("pg-dsn"),
		Checkpoint: v.GetString("checkpoint"),
		LogLevel:   v.GetString("log-level"),
	}
	return cfg, nil
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v := viper.New()
	v.SetDefault("in", "./data/vault_events.jsonl")
	v.SetDefault("window", time.Hour)
	v.SetDefault("out", "./data/vault_metrics.jsonl")
	v.SetDefault("batch-size", 1000)
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return AggregateConfig{}, err
	}

	cfg := AggregateConfig{
		Input:         v.GetString("in"),
		States:        v.GetString("states"),
		Window:        v.GetDuration("window"),
		Out:           v.GetString("out"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		LogLevel:      v.GetString("log-level"),
	}
	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp before 1970: %s", input)
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

// ParseAddress converts a hex address setting into common.Address.
func ParseAddress(name, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("%s address is required", name)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, input)
	}
	return common.HexToAddress(input), nil
}

func read(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix("VAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
