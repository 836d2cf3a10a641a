package portfolio

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/stock-tracker/internal/market"
)

type prices struct {
	mu sync.Mutex
	m  map[string]float64
}

func newPrices(m map[string]float64) *prices {
	return &prices{m: m}
}

func (p *prices) Price(symbol string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[symbol]
	return v, ok
}

func (p *prices) set(symbol string, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[symbol] = v
}

func TestBuyQuantityScenario(t *testing.T) {
	l := NewLedger(newPrices(map[string]float64{"WIG20": 2400}), 10000, "PLN")

	r, err := l.Buy("WIG20", 2, Quantity)
	require.NoError(t, err)

	assert.Equal(t, 5200.0, l.Cash())
	held, ok := l.Holding("WIG20")
	require.True(t, ok)
	assert.Equal(t, 2.0, held)
	assert.Equal(t, Receipt{
		Side: Buy, Symbol: "WIG20", Mode: Quantity,
		Quantity: 2, Price: 2400, Amount: 4800, CashAfter: 5200, At: r.At,
	}, r)
}

func TestBuyMergesPositions(t *testing.T) {
	l := NewLedger(newPrices(map[string]float64{"PKO_BP": 58.37}), 10000, "")

	_, err := l.Buy("PKO_BP", 10, Quantity)
	require.NoError(t, err)
	_, err = l.Buy("PKO_BP", 5.5, Quantity)
	require.NoError(t, err)

	held, _ := l.Holding("PKO_BP")
	assert.InDelta(t, 15.5, held, 1e-12)
	assert.InDelta(t, 10000-58.37*15.5, l.Cash(), 1e-9)
	assert.Len(t, l.Positions(), 1)
}

func TestNotionalMatchesQuantity(t *testing.T) {
	p := newPrices(map[string]float64{"CDPROJEKT": 151.3})
	byNotional := NewLedger(p, 10000, "PLN")
	byQuantity := NewLedger(p, 10000, "PLN")

	_, err := byNotional.Buy("CDPROJEKT", 1000, Notional)
	require.NoError(t, err)
	_, err = byQuantity.Buy("CDPROJEKT", 1000/151.3, Quantity)
	require.NoError(t, err)

	a, _ := byNotional.Holding("CDPROJEKT")
	b, _ := byQuantity.Holding("CDPROJEKT")
	assert.InDelta(t, b, a, 1e-9)
	assert.Equal(t, 9000.0, byNotional.Cash(), "notional buy debits exactly the amount")
	assert.InDelta(t, byQuantity.Cash(), byNotional.Cash(), 1e-9)
}

func TestBuyInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	l := NewLedger(newPrices(map[string]float64{"LPP": 17000}), 10000, "PLN")

	_, err := l.Buy("LPP", 1, Quantity)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	var te *TradeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 17000.0, te.Need)
	assert.Equal(t, 10000.0, te.Have)
	assert.Equal(t, 10000.0, l.Cash())
	assert.Empty(t, l.Positions())
}

func TestBuyExactCash(t *testing.T) {
	l := NewLedger(newPrices(map[string]float64{"KETY": 800}), 1600, "PLN")
	_, err := l.Buy("KETY", 2, Quantity)
	require.NoError(t, err)
	assert.Zero(t, l.Cash())
}

func TestSell(t *testing.T) {
	p := newPrices(map[string]float64{"KGHM": 115})
	l := NewLedger(p, 10000, "PLN")
	_, err := l.Buy("KGHM", 10, Quantity)
	require.NoError(t, err)

	p.set("KGHM", 120)
	r, err := l.Sell("KGHM", 4, Quantity)
	require.NoError(t, err)
	assert.Equal(t, 480.0, r.Amount)
	assert.False(t, r.Closed)
	assert.Equal(t, 10000-1150+480.0, l.Cash())
	held, _ := l.Holding("KGHM")
	assert.Equal(t, 6.0, held)

	r, err = l.Sell("KGHM", 720, Notional)
	require.NoError(t, err)
	assert.InDelta(t, 6, r.Quantity, 1e-12)
	assert.True(t, r.Closed)
	_, ok := l.Holding("KGHM")
	assert.False(t, ok, "fully sold position is removed")
	assert.Equal(t, 10050.0, l.Cash())
}

func TestSellDustTolerance(t *testing.T) {
	l := NewLedger(newPrices(map[string]float64{"PGE": 7.5}), 10000, "PLN")
	_, err := l.Buy("PGE", 1, Quantity)
	require.NoError(t, err)

	// slightly more than held but within epsilon
	r, err := l.Sell("PGE", 1.00005, Quantity)
	require.NoError(t, err)
	assert.True(t, r.Closed)
	assert.Empty(t, l.Positions())
}

func TestSellLeavesDustClosed(t *testing.T) {
	l := NewLedger(newPrices(map[string]float64{"PGE": 7.5}), 10000, "PLN")
	_, err := l.Buy("PGE", 1, Quantity)
	require.NoError(t, err)

	r, err := l.Sell("PGE", 0.99995, Quantity)
	require.NoError(t, err)
	assert.True(t, r.Closed, "remainder below epsilon is not kept")
	_, ok := l.Holding("PGE")
	assert.False(t, ok)
}

func TestSellInsufficientHolding(t *testing.T) {
	l := NewLedger(newPrices(map[string]float64{"PZU": 49, "ALIOR": 95}), 10000, "PLN")
	_, err := l.Buy("PZU", 2, Quantity)
	require.NoError(t, err)
	cash := l.Cash()

	_, err = l.Sell("PZU", 2.0002, Quantity)
	assert.ErrorIs(t, err, ErrInsufficientHolding)
	_, err = l.Sell("ALIOR", 1, Quantity)
	assert.ErrorIs(t, err, ErrInsufficientHolding, "no position at all")

	assert.Equal(t, cash, l.Cash())
	held, _ := l.Holding("PZU")
	assert.Equal(t, 2.0, held)
}

func TestInvalidInput(t *testing.T) {
	l := NewLedger(newPrices(map[string]float64{"WIG20": 2400, "HALTED": 0}), 10000, "PLN")

	tests := []struct {
		name   string
		symbol string
		amount float64
		mode   Mode
		want   error
	}{
		{"zero", "WIG20", 0, Quantity, ErrInvalidInput},
		{"negative", "WIG20", -1, Notional, ErrInvalidInput},
		{"bad mode", "WIG20", 1, Mode("lots"), ErrInvalidInput},
		{"empty symbol", "", 1, Quantity, ErrInvalidInput},
		{"unknown symbol", "NOPE", 1, Quantity, ErrUnknownSymbol},
		{"no price", "HALTED", 1, Notional, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Buy(tt.symbol, tt.amount, tt.mode)
			assert.ErrorIs(t, err, tt.want)
			_, err = l.Sell(tt.symbol, tt.amount, tt.mode)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 10000.0, l.Cash())
	assert.Empty(t, l.Positions())
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"10000", 10000, false},
		{" 2500,50 ", 2500.5, false},
		{"1e3", 1000, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeedCash(t *testing.T) {
	l := NewLedger(newPrices(nil), 0, "PLN")
	assert.Equal(t, DefaultCash, l.Cash())

	assert.False(t, l.SeedCash("lots"))
	assert.False(t, l.SeedCash("-100"))
	assert.Equal(t, DefaultCash, l.Cash())

	assert.True(t, l.SeedCash("25000,75"))
	assert.Equal(t, 25000.75, l.Cash())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Notional")
	require.NoError(t, err)
	assert.Equal(t, Notional, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Quantity, m)

	_, err = ParseMode("lots")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConcurrentTradesAgainstLiveState(t *testing.T) {
	state, err := market.NewState(market.NewInstrument("WIG20", market.ClassEquity, "wig20", 100))
	require.NoError(t, err)
	l := NewLedger(state, 100000, "PLN")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.Buy("WIG20", 1, Quantity)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			state.ApplyPrice("WIG20", 100)
		}()
	}
	wg.Wait()

	held, _ := l.Holding("WIG20")
	assert.Equal(t, 20.0, held)
	assert.Equal(t, 98000.0, l.Cash())
}
