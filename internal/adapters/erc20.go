package adapters

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/chain"
	"github.com/demether/sxe/internal/types"
	"github.com/demether/sxe/internal/utils"
)

const erc20FragmentJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var erc20ABI = mustParseABI("erc20", erc20FragmentJSON)

// BalanceOf reads balanceOf(account) on a token.
func BalanceOf(ctx context.Context, caller chain.Caller, token, account common.Address) (*big.Int, error) {
	out, err := viewCall(ctx, caller, erc20ABI, token, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return abiBigInt(out, 0), nil
}

// TokenBalance reads the vault's plain ERC-20 holding of a token on the
// build chain.
func TokenBalance(ctx context.Context, bctx BuildContext, token types.Token) (*types.TokenPosition, error) {
	addr, err := requireTokenAddress(token, bctx.Chain)
	if err != nil {
		return nil, err
	}

	amount, err := BalanceOf(ctx, bctx.Caller, addr, bctx.Vault)
	if err != nil {
		return nil, err
	}

	value, err := utils.BaseToHuman(amount, token.Decimals)
	if err != nil {
		value = 0
	}

	return &types.TokenPosition{
		Symbol:         token.Symbol,
		Chain:          bctx.Chain,
		Amount:         amount,
		EstimatedValue: value,
	}, nil
}

// abiBigInt extracts a *big.Int from unpacked outputs, zero if absent.
func abiBigInt(out []interface{}, idx int) *big.Int {
	if idx >= len(out) {
		return big.NewInt(0)
	}
	if v, ok := out[idx].(*big.Int); ok {
		return v
	}
	return big.NewInt(0)
}
