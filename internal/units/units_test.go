package units

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.000000000000000001", "1"},
		{"10", "10000000000000000000"},
		{" 2.25 ", "2250000000000000000"},
		{"0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToBaseUnits(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToBaseUnitsRejects(t *testing.T) {
	for _, in := range []string{
		"", "abc", "-1", "+1", "0.0000000000000000001",
		"1e20000000", "1E5", "1e-3", "1.", ".5", "1.2.3", "0x10", "1 000",
		strings.Repeat("9", 78), // above 2^256-1 once scaled
		strings.Repeat("1", maxAmountLen+1),
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ToBaseUnits(in)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		})
	}
}

func TestToBaseUnitsUpperBound(t *testing.T) {
	// 2^256-1 base units is the largest accepted amount.
	maxWhole := new(big.Int).Div(maxUint256, new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil))
	v, err := ToBaseUnits(maxWhole.String())
	require.NoError(t, err)
	assert.True(t, v.Cmp(maxUint256) <= 0)

	over := new(big.Int).Add(maxWhole, big.NewInt(1))
	_, err = ToBaseUnits(over.String())
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{"1.5", "10", "0.1", "123456.789", "0.000000000000000001"} {
		v, err := ToBaseUnits(in)
		require.NoError(t, err)
		assert.Equal(t, in, FromBaseUnits(v))
	}
}

func TestFromBaseUnitsNil(t *testing.T) {
	assert.Equal(t, "0", FromBaseUnits(nil))
	assert.Equal(t, "0", FromBaseUnits(big.NewInt(0)))
}

func TestPositive(t *testing.T) {
	_, err := Positive("0")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	v, err := Positive("0.5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, ToFloat(v))
}
