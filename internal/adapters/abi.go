package adapters

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/chain"
	"github.com/demether/sxe/internal/types"
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

// packCall encodes a method call, folding pack failures into the encoding
// error class.
func packCall(parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: packing %s: %w", types.ErrEncoding, method, err)
	}
	return data, nil
}

// viewCall performs an eth_call against a contract and unpacks the outputs.
func viewCall(ctx context.Context, caller chain.Caller, parsed abi.ABI, contract common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := packCall(parsed, method, args...)
	if err != nil {
		return nil, err
	}

	raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: calling %s on %s: %w", types.ErrExecution, method, contract.Hex(), err)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s output: %w", types.ErrEncoding, method, err)
	}
	return out, nil
}

// rawWords performs an eth_call with prebuilt calldata and splits the
// return data into 32-byte words. Used where a deployment's tuple cannot be
// ABI-decoded against the canonical fragment.
func rawWords(ctx context.Context, caller chain.Caller, contract common.Address, callData []byte) ([]*big.Int, error) {
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: raw call to %s: %w", types.ErrExecution, contract.Hex(), err)
	}

	words := make([]*big.Int, 0, len(raw)/32)
	for i := 0; i+32 <= len(raw); i += 32 {
		words = append(words, new(big.Int).SetBytes(raw[i:i+32]))
	}
	return words, nil
}
