package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/demether/sxe/internal/adapters"
	"github.com/demether/sxe/internal/chain"
	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/datafetcher"
	"github.com/demether/sxe/internal/engine"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/state"
	"github.com/demether/sxe/internal/types"
	"github.com/demether/sxe/internal/vaultexec"
	"github.com/demether/sxe/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	YIELD_COLLECT_INTERVAL = 10 * time.Minute
)

// main is the entry point for the strategy execution engine. With no
// arguments it runs the yield-collection daemon plus the status server;
// "execute", "best-yield" and "positions" run one operation and exit.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := config.ValidateStartup(); err != nil {
		log.Fatal().Err(err).Msg("Configuration tables failed validation")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Strategy execution engine starting...")

	// Initialize Database Connection
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

	// --- 2. Chain and Adapter Wiring ---
	manager := chain.NewManager(config.RPCEndpoints)
	defer manager.Close()
	backends := engine.ManagerBackends{Manager: manager}

	aaveAdapter := adapters.NewAaveAdapter()
	morphoAdapter := adapters.NewMorphoAdapter()
	registry, err := adapters.NewRegistry(
		aaveAdapter,
		morphoAdapter,
		adapters.NewAkkaAdapter(config.AkkaAPIBase, config.AkkaUseSwapAPI),
		adapters.NewUniswapAdapter(),
		adapters.NewSushiAdapter(),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build adapter registry")
	}

	executor, err := vaultexec.NewExecutor(state.Recorder{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize executor")
	}
	log.Info().Str("sender", executor.Sender().Hex()).Msg("Executor initialized")

	engineInstance := engine.New(registry, backends, executor, state.Recorder{})

	// --- 3. One-Shot Commands ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "execute":
			os.Exit(runExecute(ctx, engineInstance, os.Args[2:]))
		case "best-yield":
			os.Exit(runBestYield(ctx, engineInstance, os.Args[2:]))
		case "positions":
			os.Exit(runPositions(ctx, manager, aaveAdapter, morphoAdapter, os.Args[2:]))
		default:
			log.Fatal().Str("command", os.Args[1]).Msg("Unknown command; expected 'execute', 'best-yield' or 'positions'")
		}
	}

	// --- 4. Daemon Mode: Status Server + Yield Collection Loop ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting status server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	collector := datafetcher.NewCollector(registry, backends)
	tokens := supportedTokens()
	log.Info().
		Str("interval", YIELD_COLLECT_INTERVAL.String()).
		Int("tokens", len(tokens)).
		Msg("Starting yield collection loop")

	collectAndStore(ctx, collector, tokens)

	ticker := time.NewTicker(YIELD_COLLECT_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutdown signal received, stopping")
			return
		case <-ticker.C:
			collectAndStore(ctx, collector, tokens)
		}
	}
}

// runExecute runs a single strategy from command-line flags and prints the
// structured result. Exit code 0 only when the strategy was submitted.
func runExecute(ctx context.Context, engineInstance *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	protocol := fs.String("protocol", "", "protocol name (aave, morpho, akka, uniswap, sushi)")
	chainName := fs.String("chain", "", "chain name (arbitrum, core, katana)")
	token := fs.String("token", "", "token symbol")
	amount := fs.String("amount", "", "human-readable amount, e.g. 100.5")
	action := fs.String("action", "supply", "supply, withdraw or swap")
	dstToken := fs.String("dst-token", "", "destination token symbol for swaps")
	slippage := fs.String("slippage", "", "slippage fraction for swaps, e.g. 0.03")
	morphoVault := fs.String("vault", "", "MetaMorpho vault address for morpho strategies")
	fs.Parse(args)

	params := map[string]string{}
	if *dstToken != "" {
		params["dst_token"] = *dstToken
	}
	if *slippage != "" {
		params["slippage"] = *slippage
	}
	if *morphoVault != "" {
		params["vault"] = *morphoVault
	}

	result := engineInstance.Execute(ctx, types.Request{
		Protocol:  *protocol,
		ChainName: *chainName,
		Token:     *token,
		Amount:    *amount,
		Action:    *action,
		Params:    params,
	})

	printJSON(result)
	if result.Status != "success" {
		return 1
	}
	return 0
}

// runBestYield prints the highest supply APY available for a token.
func runBestYield(ctx context.Context, engineInstance *engine.Engine, args []string) int {
	fs := flag.NewFlagSet("best-yield", flag.ExitOnError)
	token := fs.String("token", "", "token symbol")
	fs.Parse(args)

	snapshot, err := engineInstance.BestYield(ctx, *token)
	if err != nil {
		log.Error().Err(err).Str("token", *token).Msg("Best yield lookup failed")
		return 1
	}

	printJSON(snapshot)
	return 0
}

// chainPositions groups everything the vault holds of one token on one
// chain: the plain wallet balance plus per-protocol deposits.
type chainPositions struct {
	Chain     types.ChainID             `json:"chain_id"`
	Wallet    *types.TokenPosition      `json:"wallet,omitempty"`
	Protocols []*types.ProtocolPosition `json:"protocols,omitempty"`
}

// runPositions prints the vault's holdings of a token across every chain
// with a configured vault.
func runPositions(ctx context.Context, manager *chain.Manager, aave *adapters.AaveAdapter, morpho *adapters.MorphoAdapter, args []string) int {
	fs := flag.NewFlagSet("positions", flag.ExitOnError)
	tokenSym := fs.String("token", "", "token symbol")
	fs.Parse(args)

	token, err := config.TokenBySymbol(*tokenSym)
	if err != nil {
		log.Error().Err(err).Str("token", *tokenSym).Msg("Unknown token")
		return 1
	}

	var report []chainPositions
	for chainID := range token.Addresses {
		vault, err := config.VaultFor(chainID)
		if err != nil {
			continue
		}
		client, err := manager.GetClient(ctx, chainID)
		if err != nil {
			log.Warn().Err(err).Uint64("chain_id", chainID.Uint64()).Msg("Skipping unreachable chain")
			continue
		}

		bctx := adapters.BuildContext{Chain: chainID, Vault: vault, Caller: client}
		entry := chainPositions{Chain: chainID}

		if wallet, err := adapters.TokenBalance(ctx, bctx, token); err == nil {
			entry.Wallet = wallet
		} else {
			log.Warn().Err(err).Uint64("chain_id", chainID.Uint64()).Msg("Wallet balance read failed")
		}
		if position, err := aave.Position(ctx, bctx, token); err == nil {
			entry.Protocols = append(entry.Protocols, position)
		}
		if positions, err := morpho.Positions(ctx, bctx, token); err == nil {
			entry.Protocols = append(entry.Protocols, positions...)
		}

		report = append(report, entry)
	}

	printJSON(report)
	return 0
}

func printJSON(v interface{}) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode result")
		return
	}
	fmt.Println(string(encoded))
}

// collectAndStore runs one yield sweep and persists the results.
func collectAndStore(ctx context.Context, collector *datafetcher.Collector, tokens []types.Token) {
	snapshots := collector.CollectYields(ctx, tokens)
	if err := state.SaveYieldSnapshots(snapshots); err != nil {
		log.Error().Err(err).Msg("Failed to persist yield snapshots")
	}
}

// supportedTokens flattens the token table into a slice for the collector.
func supportedTokens() []types.Token {
	tokens := make([]types.Token, 0, len(config.SupportedTokens))
	for _, token := range config.SupportedTokens {
		tokens = append(tokens, token)
	}
	return tokens
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
