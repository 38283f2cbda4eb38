package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModeDirect = "direct"
	ModeIntent = "intent"
)

// Contracts are the protocol addresses.
type Contracts struct {
	LoanManager string
	DebtEngine  string
	Model       string
	Oracle      string
	Token       string
}

// Relay configures the intent relay.
type Relay struct {
	URL      string
	IDLookup bool
}

// Track configures status polling of submitted operations.
type Track struct {
	Period        time.Duration
	Attempts      int
	Confirmations uint64
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL     string
	Contracts  Contracts
	AccountKey string
	Mode       string
	Relay      Relay
	Track      Track
	Currency   string

	Contract     string
	Event        string
	Where        []string
	ID           string
	FromBlock    uint64
	ToBlock      uint64
	Verbose      bool
	PollInterval time.Duration
	MaxBlockSpan uint64

	BatchSize         uint64
	Out               string
	PgDSN             string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Timestamps        bool

	MetricsAddr string
	LogLevel    string
}

// nested maps config keys to the flag names that set them.
var nested = map[string]string{
	"contracts.loan-manager": "loan-manager",
	"contracts.debt-engine":  "debt-engine",
	"contracts.model":        "model",
	"contracts.oracle":       "oracle",
	"contracts.token":        "token",
	"account.key":            "key",
	"relay.url":              "relay-url",
	"relay.id-lookup":        "relay-id-lookup",
	"track.period":           "period",
	"track.attempts":         "attempts",
	"track.confirmations":    "confirmations",
}

// Load merges .env, config file, environment variables, and flags into
// Config. Environment keys use the LOANKIT_ prefix with '.' and '-' mapped
// to '_', e.g. LOANKIT_CONTRACTS_LOAN_MANAGER.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	envFile := ".env"
	if flags != nil {
		if f := flags.Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("LOANKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", ModeDirect)
	v.SetDefault("currency", "ARS")
	v.SetDefault("track.period", time.Second)
	v.SetDefault("track.attempts", 640)
	v.SetDefault("track.confirmations", uint64(1))
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
		for key, name := range nested {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL: v.GetString("rpc"),
		Contracts: Contracts{
			LoanManager: v.GetString("contracts.loan-manager"),
			DebtEngine:  v.GetString("contracts.debt-engine"),
			Model:       v.GetString("contracts.model"),
			Oracle:      v.GetString("contracts.oracle"),
			Token:       v.GetString("contracts.token"),
		},
		AccountKey: v.GetString("account.key"),
		Mode:       strings.ToLower(v.GetString("mode")),
		Relay: Relay{
			URL:      v.GetString("relay.url"),
			IDLookup: v.GetBool("relay.id-lookup"),
		},
		Track: Track{
			Period:        v.GetDuration("track.period"),
			Attempts:      v.GetInt("track.attempts"),
			Confirmations: v.GetUint64("track.confirmations"),
		},
		Currency: v.GetString("currency"),

		Contract:     v.GetString("contract"),
		Event:        v.GetString("event"),
		Where:        getStringSlice(v, "where"),
		ID:           v.GetString("id"),
		FromBlock:    v.GetUint64("from"),
		ToBlock:      v.GetUint64("to"),
		Verbose:      v.GetBool("verbose"),
		PollInterval: v.GetDuration("poll-interval"),
		MaxBlockSpan: v.GetUint64("max-block-span"),

		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		PgDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Timestamps:        v.GetBool("timestamps"),

		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Mode != ModeDirect && c.Mode != ModeIntent {
		return fmt.Errorf("invalid mode %q, want %s or %s", c.Mode, ModeDirect, ModeIntent)
	}
	for name, value := range map[string]string{
		"contracts.loan-manager": c.Contracts.LoanManager,
		"contracts.debt-engine":  c.Contracts.DebtEngine,
		"contracts.model":        c.Contracts.Model,
		"contracts.oracle":       c.Contracts.Oracle,
		"contracts.token":        c.Contracts.Token,
	} {
		if value != "" && !common.IsHexAddress(value) {
			return fmt.Errorf("%s: invalid address %q", name, value)
		}
	}
	return nil
}

// ContractAddress returns the configured address of a contract kind
// ("loan-manager", "debt-engine" or "token").
func (c Config) ContractAddress(kind string) (common.Address, error) {
	var raw string
	switch kind {
	case "loan-manager":
		raw = c.Contracts.LoanManager
	case "debt-engine":
		raw = c.Contracts.DebtEngine
	case "token":
		raw = c.Contracts.Token
	default:
		return common.Address{}, fmt.Errorf("unknown contract %q", kind)
	}
	if raw == "" {
		return common.Address{}, fmt.Errorf("contracts.%s is not configured", kind)
	}
	return common.HexToAddress(raw), nil
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
