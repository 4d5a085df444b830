package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/demether/sxe/internal/types"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PrivateKeyHex is the hex-encoded ECDSA key that controls the vaults.
	PrivateKeyHex string

	// VaultAddresses maps each chain to the strategy vault this instance drives.
	VaultAddresses map[types.ChainID]common.Address

	// DefaultGasLimit is the fallback gas limit if estimation fails.
	DefaultGasLimit uint64
	// SwapGasLimit is the fallback ceiling for DEX swap transactions.
	SwapGasLimit uint64
	// ApprovalGasLimit is the fallback ceiling for ERC-20 approve transactions.
	ApprovalGasLimit uint64
	// GasAdjustment is the multiplier applied to estimated gas.
	GasAdjustment float64

	// DefaultSlippage is the slippage tolerance applied to swap quotes when
	// the caller does not specify one (fraction, e.g. 0.03 for 3%).
	DefaultSlippage float64

	// AkkaUseSwapAPI switches the Akka adapter to take prebuilt calldata
	// from the aggregator's /swap endpoint instead of encoding locally.
	AkkaUseSwapAPI bool
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	PrivateKeyHex, err = getEnv("PRIVATE_KEY")
	if err != nil {
		return err
	}
	PrivateKeyHex = strings.TrimPrefix(PrivateKeyHex, "0x")

	if err := loadVaultAddresses(); err != nil {
		return err
	}

	DefaultGasLimit = getEnvAsUint64OrDefault("GAS_DEFAULT_LIMIT", 500_000)
	SwapGasLimit = getEnvAsUint64OrDefault("GAS_SWAP_LIMIT", 1_500_000)
	ApprovalGasLimit = getEnvAsUint64OrDefault("GAS_APPROVAL_LIMIT", 200_000)
	GasAdjustment = getEnvAsFloat64OrDefault("GAS_ADJUSTMENT", 1.15)
	DefaultSlippage = getEnvAsFloat64OrDefault("DEFAULT_SLIPPAGE", 0.03)
	AkkaUseSwapAPI = getEnvOrDefault("AKKA_USE_SWAP_API", "false") == "true"

	if GasAdjustment < 1.0 {
		return errors.New("GAS_ADJUSTMENT must be >= 1.0")
	}
	if DefaultSlippage < 0 || DefaultSlippage >= 1 {
		return errors.New("DEFAULT_SLIPPAGE must be in [0, 1)")
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Int("Vaults", len(VaultAddresses)).
		Uint64("DefaultGasLimit", DefaultGasLimit).
		Float64("GasAdjustment", GasAdjustment).
		Msg("Configuration loaded successfully.")

	return nil
}

// loadVaultAddresses resolves the vault address per chain. VAULT_ADDRESS is
// the fallback applied to every chain; VAULT_ADDRESS_<NAME> overrides it.
func loadVaultAddresses() error {
	VaultAddresses = make(map[types.ChainID]common.Address)

	fallback := os.Getenv("VAULT_ADDRESS")
	for _, chain := range SupportedChains {
		key := "VAULT_ADDRESS_" + strings.ToUpper(chain.Name)
		raw := os.Getenv(key)
		if raw == "" {
			raw = fallback
		}
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return errors.New("environment variable " + key + " is not a valid address: " + raw)
		}
		VaultAddresses[chain.ID] = common.HexToAddress(raw)
	}

	if len(VaultAddresses) == 0 {
		return errors.New("no vault address configured; set VAULT_ADDRESS or a per-chain VAULT_ADDRESS_<NAME>")
	}
	return nil
}

// VaultFor returns the vault address configured for a chain.
func VaultFor(chain types.ChainID) (common.Address, error) {
	addr, ok := VaultAddresses[chain]
	if !ok {
		return common.Address{}, errors.New("no vault address configured for chain " + strconv.FormatUint(chain.Uint64(), 10))
	}
	return addr, nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable with a fallback.
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsUint64OrDefault retrieves an environment variable as a uint64,
// falling back when unset or unparseable.
func getEnvAsUint64OrDefault(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid uint64 environment variable, using default")
		return defaultValue
	}
	return value
}

// getEnvAsFloat64OrDefault retrieves an environment variable as a float64,
// falling back when unset or unparseable.
func getEnvAsFloat64OrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid float64 environment variable, using default")
		return defaultValue
	}
	return value
}
