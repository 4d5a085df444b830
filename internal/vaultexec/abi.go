package vaultexec

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// mustParseABI parses a compile-time ABI fragment. The fragments are
// constants, so a parse failure is a programming error.
func mustParseABI(name, fragment string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(fragment))
	if err != nil {
		panic(fmt.Sprintf("invalid %s ABI fragment: %v", name, err))
	}
	return parsed
}
