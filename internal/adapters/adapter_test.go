package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demether/sxe/internal/types"
)

func TestRegistryDispatch(t *testing.T) {
	reg, err := NewRegistry(NewAaveAdapter(), NewMorphoAdapter(), NewUniswapAdapter())
	require.NoError(t, err)

	adapter, err := reg.Get(types.ProtocolMorpho)
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolMorpho, adapter.Protocol())

	assert.ElementsMatch(t,
		[]types.Protocol{types.ProtocolAave, types.ProtocolMorpho, types.ProtocolUniswapV3},
		reg.Protocols())
}

func TestRegistryUnknownProtocol(t *testing.T) {
	reg, err := NewRegistry(NewAaveAdapter())
	require.NoError(t, err)

	_, err = reg.Get(types.ProtocolSushi)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(NewAaveAdapter(), NewAaveAdapter())
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
