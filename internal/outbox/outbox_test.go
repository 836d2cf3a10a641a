package outbox

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/stock-tracker/internal/portfolio"
)

func receipt(symbol string, qty float64) func() (portfolio.Receipt, error) {
	return func() (portfolio.Receipt, error) {
		return portfolio.Receipt{Side: portfolio.Buy, Symbol: symbol, Quantity: qty}, nil
	}
}

func TestExecuteJournalsTrades(t *testing.T) {
	o := New(10, time.Minute)

	e1, replayed, err := o.Execute("", receipt("PKO_BP", 1))
	require.NoError(t, err)
	assert.False(t, replayed)
	e2, _, err := o.Execute("", receipt("PZU", 2))
	require.NoError(t, err)

	assert.Equal(t, int64(1), e1.Seq)
	assert.Equal(t, int64(2), e2.Seq)
	entries := o.Entries(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "PZU", entries[1].Receipt.Symbol)
	assert.Len(t, o.Entries(1), 1)
}

func TestExecuteReplaysWithinWindow(t *testing.T) {
	o := New(10, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	calls := 0
	trade := func() (portfolio.Receipt, error) {
		calls++
		return portfolio.Receipt{Symbol: "KGHM", Quantity: 3}, nil
	}

	first, _, err := o.Execute("abc", trade)
	require.NoError(t, err)
	again, replayed, err := o.Execute("abc", trade)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	_, replayed, err = o.Execute("abc", trade)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 2, calls)
}

func TestFailedTradesAreNotJournaled(t *testing.T) {
	o := New(10, time.Minute)
	_, _, err := o.Execute("k", func() (portfolio.Receipt, error) {
		return portfolio.Receipt{}, portfolio.ErrInsufficientFunds
	})
	assert.True(t, errors.Is(err, portfolio.ErrInsufficientFunds))
	assert.Empty(t, o.Entries(0))

	_, replayed, err := o.Execute("k", receipt("PZU", 1))
	require.NoError(t, err)
	assert.False(t, replayed, "a failed attempt must not block the retry")
}

func TestLimitKeepsNewest(t *testing.T) {
	o := New(3, time.Minute)
	for i := 1; i <= 5; i++ {
		_, _, err := o.Execute("", receipt("PGE", float64(i)))
		require.NoError(t, err)
	}
	entries := o.Entries(0)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(3), entries[0].Seq)
	assert.Equal(t, int64(5), entries[2].Seq)
}

func TestConcurrentRetriesExecuteOnce(t *testing.T) {
	o := New(10, time.Minute)
	var mu sync.Mutex
	calls := 0
	trade := func() (portfolio.Receipt, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return portfolio.Receipt{Symbol: "LPP"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = o.Execute("same", trade)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
	assert.Len(t, o.Entries(0), 1)
}
