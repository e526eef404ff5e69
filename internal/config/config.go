package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// nativeDecimals maps chain IDs whose native currency does not use 18
// decimals. EVM chains are 18-decimal unless listed here.
var nativeDecimals = map[int64]int{}

const defaultNativeDecimals = 18

type Config struct {
	ListenAddr  string
	DatabaseDSN string

	RPCEndpoint      string
	ChainID          int64
	FaucetPrivateKey string
	FaucetAmount     string // whole tokens, decimal string
	TokenDecimals    int
	CooldownDuration time.Duration

	AllowedOrigins []string
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first if present. A missing signing key is not
// an error: the faucet runs in a disabled, always-denying state without it.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		DatabaseDSN:      os.Getenv("DATABASE_URL"),
		RPCEndpoint:      os.Getenv("RPC_ENDPOINT"),
		FaucetPrivateKey: os.Getenv("FAUCET_PRIVATE_KEY"),
		FaucetAmount:     getenv("FAUCET_AMOUNT", "50"),
		TokenDecimals:    defaultNativeDecimals,
		CooldownDuration: 24 * time.Hour,
	}

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAIN_ID %q: %w", v, err)
		}
		cfg.ChainID = id
	}
	if v := os.Getenv("FAUCET_TOKEN_DECIMALS"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid FAUCET_TOKEN_DECIMALS %q: %w", v, err)
		}
		cfg.TokenDecimals = d
	}
	if v := os.Getenv("FAUCET_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid FAUCET_COOLDOWN %q: %w", v, err)
		}
		cfg.CooldownDuration = d
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.TokenDecimals < 0 || cfg.TokenDecimals > 18 {
		return nil, fmt.Errorf("FAUCET_TOKEN_DECIMALS must be in [0,18], got %d", cfg.TokenDecimals)
	}
	if err := cfg.ValidateNativeDecimals(); err != nil {
		return nil, err
	}
	if _, err := cfg.AmountBaseUnits(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FaucetEnabled reports whether the faucet can sign and submit transfers.
func (c *Config) FaucetEnabled() bool {
	return c.FaucetPrivateKey != "" && c.RPCEndpoint != ""
}

// ValidateNativeDecimals checks the configured decimal exponent against the
// target chain's native currency. The exponent is deliberately explicit
// configuration rather than an assumption baked into transfer math.
func (c *Config) ValidateNativeDecimals() error {
	want := defaultNativeDecimals
	if d, ok := nativeDecimals[c.ChainID]; ok {
		want = d
	}
	if c.TokenDecimals != want {
		return fmt.Errorf("FAUCET_TOKEN_DECIMALS is %d but chain %d native currency uses %d decimals",
			c.TokenDecimals, c.ChainID, want)
	}
	return nil
}

// AmountBaseUnits converts the configured whole-token amount into base units
// (wei for an 18-decimal chain). Amounts with more fractional digits than the
// chain supports are rejected rather than truncated.
func (c *Config) AmountBaseUnits() (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(c.FaucetAmount)
	if !ok {
		return nil, fmt.Errorf("invalid FAUCET_AMOUNT %q", c.FaucetAmount)
	}
	if rat.Sign() <= 0 {
		return nil, fmt.Errorf("FAUCET_AMOUNT must be positive, got %q", c.FaucetAmount)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.TokenDecimals)), nil)
	rat.Mul(rat, new(big.Rat).SetInt(scale))
	if !rat.IsInt() {
		return nil, fmt.Errorf("FAUCET_AMOUNT %q has more than %d decimal places", c.FaucetAmount, c.TokenDecimals)
	}
	return rat.Num(), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
