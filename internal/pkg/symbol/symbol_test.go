package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
	}{
		{"BTC/USDT", "BTC", "USDT"},
		{"btc/usdt", "BTC", "USDT"},
		{"BTCUSDT", "BTC", "USDT"},
		{"ETHBTC", "ETH", "BTC"},
		{"PEPEUSDC", "PEPE", "USDC"},
		{" SOL/USDT ", "SOL", "USDT"},
	}
	for _, tc := range cases {
		sym := Parse(tc.in)
		assert.Equal(t, tc.base, sym.Base, tc.in)
		assert.Equal(t, tc.quote, sym.Quote, tc.in)
	}
}

func TestParse_Invalid(t *testing.T) {
	assert.Equal(t, Symbol{}, Parse(""))
	assert.Equal(t, Symbol{}, Parse("USDT"))
	assert.Equal(t, Symbol{}, Parse("???"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "BTC/USDT", Normalize("BTCUSDT"))
	assert.Equal(t, "BTC/USDT", Normalize("btc/usdt"))
	assert.Equal(t, "", Normalize("garbage"))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("BTC/USDT"))
	assert.True(t, IsValid("ETHUSDT"))
	assert.False(t, IsValid("FOO"))
}
