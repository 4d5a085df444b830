package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanToBase(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int
		want     string
	}{
		{"100", 6, "100000000"},
		{"100.5", 6, "100500000"},
		{"0.000001", 6, "1"},
		{"50", 18, "50000000000000000000"},
		{"1.2345678", 6, "1234567"}, // truncated, not rounded
		{"0", 6, "0"},
	}
	for _, tc := range cases {
		got, err := HumanToBase(tc.amount, tc.decimals)
		require.NoError(t, err, tc.amount)
		assert.Equal(t, tc.want, got.String(), tc.amount)
	}
}

func TestHumanToBase_Rejections(t *testing.T) {
	_, err := HumanToBase("-5", 6)
	assert.ErrorIs(t, err, ErrAmountNegative)

	_, err = HumanToBase("a lot", 6)
	assert.ErrorIs(t, err, ErrAmountInvalid)

	_, err = HumanToBase("1", 19)
	assert.ErrorIs(t, err, ErrInvalidDecimals)
}

func TestBaseToHuman(t *testing.T) {
	value, err := BaseToHuman(big.NewInt(100_500_000), 6)
	require.NoError(t, err)
	assert.InDelta(t, 100.5, value, 1e-9)

	_, err = BaseToHuman(nil, 6)
	assert.ErrorIs(t, err, ErrAmountNil)

	_, err = BaseToHuman(big.NewInt(-1), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)
}

func TestRoundTrip(t *testing.T) {
	base, err := HumanToBase("123.456789", 6)
	require.NoError(t, err)

	human, err := BaseToHuman(base, 6)
	require.NoError(t, err)
	assert.InDelta(t, 123.456789, human, 1e-9)
}
