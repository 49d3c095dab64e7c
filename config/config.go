package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"defi-hub/pkg/contracts"
)

// Default contract addresses match the local Anvil/Hardhat deployment
// the dashboard ships against. Override them per environment.
const (
	DefaultToken0Address          = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	DefaultToken1Address          = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	DefaultAMMAddress             = "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"
	DefaultHookAddress            = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	DefaultPositionManagerAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

// Config holds the application configuration
type Config struct {
	RPCURL     string
	ChainID    int64
	PrivateKey string

	Token0          string
	Token1          string
	AMM             string
	Hook            string
	PositionManager string

	SettleDelay    time.Duration
	PointsDecimals int
	Listen         string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".defi-hub")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("rpc_url", "http://127.0.0.1:8545")
	viper.SetDefault("chain_id", 31337)
	viper.SetDefault("token0_address", DefaultToken0Address)
	viper.SetDefault("token1_address", DefaultToken1Address)
	viper.SetDefault("amm_address", DefaultAMMAddress)
	viper.SetDefault("hook_address", DefaultHookAddress)
	viper.SetDefault("position_manager_address", DefaultPositionManagerAddress)
	viper.SetDefault("settle_delay", "2s")
	viper.SetDefault("points_decimals", 18)
	viper.SetDefault("listen", "127.0.0.1:8791")

	// Read from environment variables
	viper.SetEnvPrefix("DEFI_HUB")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		RPCURL:          viper.GetString("rpc_url"),
		ChainID:         viper.GetInt64("chain_id"),
		PrivateKey:      viper.GetString("private_key"),
		Token0:          viper.GetString("token0_address"),
		Token1:          viper.GetString("token1_address"),
		AMM:             viper.GetString("amm_address"),
		Hook:            viper.GetString("hook_address"),
		PositionManager: viper.GetString("position_manager_address"),
		SettleDelay:     viper.GetDuration("settle_delay"),
		PointsDecimals:  viper.GetInt("points_decimals"),
		Listen:          viper.GetString("listen"),
	}

	if _, err := cfg.Addresses(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Addresses validates the configured contract addresses and returns them
// as an AddressBook.
func (c *Config) Addresses() (contracts.AddressBook, error) {
	fields := []struct {
		name  string
		value string
	}{
		{"token0_address", c.Token0},
		{"token1_address", c.Token1},
		{"amm_address", c.AMM},
		{"hook_address", c.Hook},
		{"position_manager_address", c.PositionManager},
	}
	for _, f := range fields {
		if !common.IsHexAddress(f.value) {
			return contracts.AddressBook{}, fmt.Errorf("invalid %s: %s", f.name, f.value)
		}
	}

	return contracts.AddressBook{
		Token0:          common.HexToAddress(c.Token0),
		Token1:          common.HexToAddress(c.Token1),
		AMM:             common.HexToAddress(c.AMM),
		Hook:            common.HexToAddress(c.Hook),
		PositionManager: common.HexToAddress(c.PositionManager),
	}, nil
}

// Get returns the global configuration, loading it on first use.
func Get() (*Config, error) {
	if globalConfig == nil {
		return Load()
	}
	return globalConfig, nil
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
