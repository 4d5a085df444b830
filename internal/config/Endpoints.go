package config

import (
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/demether/sxe/internal/types"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// RPCEndpoints maps each chain to its JSON-RPC URL. Defaults come from
	// the chain table; <NAME>_RPC_URL overrides per chain.
	RPCEndpoints map[types.ChainID]string

	// AkkaAPIBase is the base URL of the Akka aggregator REST API.
	AkkaAPIBase string

	// SushiRouterKatana is the Sushi V2 router address on Katana. The router
	// is not a canonical deployment so it comes from the environment.
	SushiRouterKatana string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	RPCEndpoints = make(map[types.ChainID]string)
	for _, chain := range SupportedChains {
		key := strings.ToUpper(chain.Name) + "_RPC_URL"
		url := getEnvOrDefault(key, chain.DefaultRPC)
		if url == "" {
			return errors.New("no RPC endpoint for chain " + chain.Name + "; set " + key)
		}
		RPCEndpoints[chain.ID] = url
	}

	AkkaAPIBase = getEnvOrDefault("AKKA_API_URL", "https://routerv2.akka.finance/v2")
	SushiRouterKatana = os.Getenv("SUSHI_ROUTER_KATANA")

	log.Debug().
		Int("RPCEndpoints", len(RPCEndpoints)).
		Str("AkkaAPIBase", AkkaAPIBase).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// RPCFor returns the JSON-RPC endpoint for a chain.
func RPCFor(chain types.ChainID) (string, bool) {
	url, ok := RPCEndpoints[chain]
	return url, ok
}
