package types

import "errors"

// Error taxonomy sentinels. Concrete errors join one of these so callers can
// classify failures with errors.Is without inspecting message text.
var (
	// ErrConfiguration marks failures detected before any network call:
	// unsupported chain, unknown token or protocol, missing contract address.
	ErrConfiguration = errors.New("configuration error")

	// ErrQuote marks an off-chain quote API that was unreachable or returned
	// a non-200 or malformed body.
	ErrQuote = errors.New("quote error")

	// ErrEncoding marks quote or market data that could not be mapped into
	// the expected on-chain tuple shape.
	ErrEncoding = errors.New("encoding error")

	// ErrExecution marks RPC failures, gas-estimation failures and on-chain
	// reverts encountered while submitting transactions.
	ErrExecution = errors.New("execution error")

	// ErrUnsupported marks an operation a protocol adapter does not provide
	// (e.g. a swap on a lending-only protocol, or a quote requiring native
	// value the vault path cannot forward).
	ErrUnsupported = errors.New("unsupported operation")
)
