package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuation(t *testing.T) {
	p := newPrices(map[string]float64{"WIG20": 2400, "PKO_BP": 58})
	l := NewLedger(p, 10000, "PLN")
	_, err := l.Buy("WIG20", 2, Quantity)
	require.NoError(t, err)
	_, err = l.Buy("PKO_BP", 10, Quantity)
	require.NoError(t, err)

	p.set("WIG20", 2500)
	v := l.Valuation()

	assert.Equal(t, "PLN", v.Currency)
	assert.Equal(t, 4620.0, v.Cash)
	assert.Equal(t, 5580.0, v.Holdings)
	assert.Equal(t, 10200.0, v.Total)
	require.Len(t, v.Positions, 2)
	assert.Equal(t, "PKO_BP", v.Positions[0].Symbol)
	assert.Equal(t, PositionValue{Symbol: "WIG20", Quantity: 2, Price: 2500, Value: 5000, Priced: true}, v.Positions[1])
}

func TestValuationUnpricedPosition(t *testing.T) {
	p := newPrices(map[string]float64{"JSW": 30})
	l := NewLedger(p, 1000, "PLN")
	_, err := l.Buy("JSW", 1, Quantity)
	require.NoError(t, err)

	p.set("JSW", 0)
	v := l.Valuation()
	assert.False(t, v.Positions[0].Priced)
	assert.Equal(t, 970.0, v.Total)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$5,200.00", FormatMoney(5200, "USD"))
	assert.Equal(t, "$0.01", FormatMoney(0.005, "USD"))
	assert.Equal(t, "12.50 XYZ", FormatMoney(12.5, "XYZ"))

	l := NewLedger(newPrices(nil), 0, "usd")
	assert.Equal(t, "$10,000.00", l.Format(l.Cash()))
}
