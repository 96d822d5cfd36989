package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPercentageBounds(t *testing.T) {
	for _, raw := range []string{"0", "100", "37.5", "99.99"} {
		_, err := ParsePercentage(raw)
		assert.NoError(t, err, raw)
	}
	for _, raw := range []string{"-0.01", "100.01", "250"} {
		_, err := ParsePercentage(raw)
		assert.Error(t, err, raw)
	}
	_, err := ParsePercentage("half")
	assert.Error(t, err)
}

func TestNewPercentageScale(t *testing.T) {
	for _, raw := range []string{"33.33", "33.3", "33.3300", "100.00"} {
		_, err := ParsePercentage(raw)
		assert.NoError(t, err, raw)
	}
	_, err := ParsePercentage("33.334")
	assert.ErrorContains(t, err, "more than 2 decimal places")

	var got struct {
		Pct Percentage `json:"pct"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"pct": 60.005}`), &got))
}

func TestPercentageSumsAreExact(t *testing.T) {
	total := decimal.Zero
	for _, raw := range []string{"33.33", "33.33", "33.34"} {
		total = total.Add(MustPercentage(raw).Decimal)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(100)), "got %s", total)
}

func TestPercentageJSON(t *testing.T) {
	type payload struct {
		Pct Percentage `json:"pct"`
	}

	var got payload
	require.NoError(t, json.Unmarshal([]byte(`{"pct": 42.5}`), &got))
	assert.Equal(t, "42.5", got.Pct.String())

	require.NoError(t, json.Unmarshal([]byte(`{"pct": "75"}`), &got))
	assert.Equal(t, "75", got.Pct.String())

	assert.Error(t, json.Unmarshal([]byte(`{"pct": 101}`), &got))

	out, err := json.Marshal(payload{Pct: MustPercentage("12.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pct": 12.5}`, string(out))
}

func TestNumberMarshalsBare(t *testing.T) {
	out, err := json.Marshal(map[string]Number{"total": NewNumber(decimal.RequireFromString("125.50"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 125.5}`, string(out))
}
