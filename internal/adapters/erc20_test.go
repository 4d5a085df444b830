package adapters

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demether/sxe/internal/types"
)

func TestTokenBalance(t *testing.T) {
	token := usdcToken(t)
	usdcArb := token.Addresses[types.ChainArbitrum]
	amount := big.NewInt(12_500_000) // 12.5 USDC

	caller := newFakeCaller()
	caller.respond(usdcArb, selectorOf("balanceOf(address)"),
		common.LeftPadBytes(amount.Bytes(), 32))

	bctx := BuildContext{Chain: types.ChainArbitrum, Vault: testVault, Caller: caller}

	position, err := TokenBalance(context.Background(), bctx, token)
	require.NoError(t, err)
	assert.Equal(t, "USDC", position.Symbol)
	assert.Equal(t, amount, position.Amount)
	assert.InDelta(t, 12.5, position.EstimatedValue, 1e-9)
}

func TestTokenBalance_UnsupportedChain(t *testing.T) {
	bctx := BuildContext{Chain: types.ChainKatana, Vault: testVault, Caller: newFakeCaller()}

	_, err := TokenBalance(context.Background(), bctx, usdcToken(t))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
