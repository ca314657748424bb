package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ControllerAccount is the ledger account the controller operates as. It is
	// the controller address of every pool the service manages.
	ControllerAccount string
	// OwnerAccount is the governance account permitted to manage categories,
	// deploy pools and tune the unbound token seller.
	OwnerAccount string
	// FeeRecipientAccount receives exit fees collected by managed pools.
	FeeRecipientAccount string

	// DefaultSwapFee is the swap fee applied to newly deployed pools.
	DefaultSwapFee float64
	// SellerPremium is the discount/markup rate for the unbound token seller.
	SellerPremium float64

	// RebalanceDelay is the minimum time between reweighs of a single pool.
	RebalanceDelay time.Duration
	// SortFreshness is how long a category market-cap ordering stays usable.
	SortFreshness time.Duration
	// CycleInterval is how often the rebalancer wakes up and walks the pools.
	CycleInterval time.Duration
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ControllerAccount, err = getEnv("CONTROLLER_ACCOUNT")
	if err != nil {
		return err
	}

	OwnerAccount, err = getEnv("OWNER_ACCOUNT")
	if err != nil {
		return err
	}

	FeeRecipientAccount, err = getEnv("FEE_RECIPIENT_ACCOUNT")
	if err != nil {
		return err
	}

	DefaultSwapFee, err = getEnvAsFloat64("DEFAULT_SWAP_FEE")
	if err != nil {
		return err
	}

	SellerPremium, err = getEnvAsFloat64("SELLER_PREMIUM")
	if err != nil {
		return err
	}

	rebalanceHours, err := getEnvAsUint64("REBALANCE_DELAY_HOURS")
	if err != nil {
		return err
	}
	RebalanceDelay = time.Duration(rebalanceHours) * time.Hour

	freshnessHours, err := getEnvAsUint64("SORT_FRESHNESS_HOURS")
	if err != nil {
		return err
	}
	SortFreshness = time.Duration(freshnessHours) * time.Hour

	intervalMinutes, err := getEnvAsUint64("CYCLE_INTERVAL_MINUTES")
	if err != nil {
		return err
	}
	CycleInterval = time.Duration(intervalMinutes) * time.Minute

	log.Debug().
		Str("ControllerAccount", ControllerAccount).
		Str("OwnerAccount", OwnerAccount).
		Float64("DefaultSwapFee", DefaultSwapFee).
		Dur("RebalanceDelay", RebalanceDelay).
		Dur("CycleInterval", CycleInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}
