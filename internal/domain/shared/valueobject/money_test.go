package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromInt(100), USD)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromInt(100)))
		assert.Equal(t, USD, m.Currency())
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.Error(t, err)
	})
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoneyUSD(decimal.NewFromInt(100))
	b := NewMoneyUSD(decimal.NewFromInt(30))

	t.Run("add", func(t *testing.T) {
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.True(t, sum.Amount().Equal(decimal.NewFromInt(130)))
	})

	t.Run("subtract", func(t *testing.T) {
		diff, err := a.Subtract(b)
		require.NoError(t, err)
		assert.True(t, diff.Amount().Equal(decimal.NewFromInt(70)))
	})

	t.Run("currency mismatch fails", func(t *testing.T) {
		eur, err := NewMoney(decimal.NewFromInt(10), EUR)
		require.NoError(t, err)
		_, err = a.Add(eur)
		assert.Error(t, err)
	})

	t.Run("negate", func(t *testing.T) {
		neg := a.Negate()
		assert.True(t, neg.Amount().Equal(decimal.NewFromInt(-100)))
		assert.True(t, neg.IsNegative())
	})

	t.Run("percentage", func(t *testing.T) {
		tax := a.CalculatePercentage(decimal.NewFromInt(10))
		assert.True(t, tax.Amount().Equal(decimal.NewFromInt(10)))
	})
}

func TestMoneyAllocate(t *testing.T) {
	t.Run("parts sum exactly to the original amount", func(t *testing.T) {
		m := NewMoneyUSD(decimal.NewFromInt(100))
		weights := []decimal.Decimal{
			decimal.NewFromInt(1),
			decimal.NewFromInt(1),
			decimal.NewFromInt(1),
		}
		parts, err := m.Allocate(weights)
		require.NoError(t, err)
		require.Len(t, parts, 3)

		sum := decimal.Zero
		for _, p := range parts {
			sum = sum.Add(p.Amount())
		}
		assert.True(t, sum.Equal(m.Amount()), "expected %s, got %s", m.Amount(), sum)
	})

	t.Run("proportional weights", func(t *testing.T) {
		m := NewMoneyUSD(decimal.NewFromInt(1000))
		parts, err := m.Allocate([]decimal.Decimal{
			decimal.NewFromInt(700),
			decimal.NewFromInt(300),
		})
		require.NoError(t, err)
		assert.True(t, parts[0].Amount().Equal(decimal.NewFromInt(700)))
		assert.True(t, parts[1].Amount().Equal(decimal.NewFromInt(300)))
	})

	t.Run("rejects zero weights", func(t *testing.T) {
		m := NewMoneyUSD(decimal.NewFromInt(100))
		_, err := m.Allocate([]decimal.Decimal{decimal.Zero, decimal.Zero})
		assert.Error(t, err)
	})
}

func TestMoneyJSON(t *testing.T) {
	m := NewMoneyUSD(decimal.RequireFromString("19.99"))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Equals(decoded))
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("42.50"))
	assert.True(t, m.Amount().Equal(decimal.RequireFromString("42.50")))
	assert.Equal(t, DefaultCurrency, m.Currency())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())
}
