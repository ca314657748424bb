package main

import (
	"context"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/indexed-finance/indexed-core-sub000/internal/bank"
	"github.com/indexed-finance/indexed-core-sub000/internal/config"
	"github.com/indexed-finance/indexed-core-sub000/internal/controller"
	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
	"github.com/indexed-finance/indexed-core-sub000/internal/oracle"
	"github.com/indexed-finance/indexed-core-sub000/internal/rebalancer"
	"github.com/indexed-finance/indexed-core-sub000/internal/registry"
	"github.com/indexed-finance/indexed-core-sub000/internal/sink"
	"github.com/indexed-finance/indexed-core-sub000/internal/state"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
	"github.com/indexed-finance/indexed-core-sub000/internal/web"
)

const (
	// TWAP_WINDOW is the trailing window the price oracle averages over.
	TWAP_WINDOW = 24 * time.Hour

	SINK_ACCOUNT = types.Account("unbound-token-seller")
)

// main is the entry point for the index controller daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Index controller daemon starting...")

	// Initialize database connection (cycle history and pool events)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Core Component Wiring ---
	ledger := bank.NewLedger()
	prices := oracle.NewTWAPOracle(TWAP_WINDOW, nil)

	premiumSink, err := sink.New(
		SINK_ACCOUNT,
		types.Account(config.OwnerAccount),
		ledger,
		prices,
		mustDec(config.SellerPremium),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create unbound token seller")
	}

	ctrl, err := controller.New(controller.Config{
		Account:          types.Account(config.ControllerAccount),
		Owner:            types.Account(config.OwnerAccount),
		Ledger:           ledger,
		Prices:           prices,
		Registry:         registry.New(),
		Sink:             premiumSink,
		DefaultSwapFee:   mustDec(config.DefaultSwapFee),
		ExitFeeRecipient: types.Account(config.FeeRecipientAccount),
		SortFreshness:    config.SortFreshness,
		RebalanceDelay:   config.RebalanceDelay,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create index controller")
	}
	log.Info().Str("account", config.ControllerAccount).Msg("Index controller created")

	// --- 3. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, ctrl)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Start Rebalancer Main Loop ---
	reb, err := rebalancer.New(rebalancer.Config{Controller: ctrl})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rebalancer")
	}

	log.Info().Str("interval", config.CycleInterval.String()).Msg("Starting rebalancer main loop")
	reb.RunLoop(context.Background(), config.CycleInterval)
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}

// Helper to convert a configured float to the fixed-point representation the
// engine works in.
func mustDec(f float64) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(strconv.FormatFloat(f, 'f', -1, 64))
}
