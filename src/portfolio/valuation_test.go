package portfolio

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuateAggregates(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Deposit(10000))
	require.NoError(t, l.Buy("AAPL", 10, 100, 5))
	require.NoError(t, l.Buy("MSFT", 5, 200, 5))

	quotes := staticQuotes(map[string]float64{
		"AAPL": 120,
		"MSFT": 180,
	})

	report := Valuate(context.Background(), l, quotes)

	// Cash: 10000 - 1005 - 1005 = 7990
	assert.InDelta(t, 7990, report.Balance, 1e-9)
	assert.InDelta(t, 2000, report.InvestedAmount, 1e-9)
	// 10*120 + 5*180
	assert.InDelta(t, 2100, report.TotalPortfolioValue, 1e-9)
	assert.InDelta(t, 10000, report.NetContributions, 1e-9)
	assert.InDelta(t, 10090, report.TotalEquity, 1e-9)
	assert.InDelta(t, 90, report.OverallPL, 1e-9)
	assert.InDelta(t, 0.9, report.OverallPLPercentage, 1e-9)
	// AAPL +200, MSFT -100
	assert.InDelta(t, 100, report.UnrealizedPL, 1e-9)
	// Overall 90 - unrealized 100: the two commissions.
	assert.InDelta(t, -10, report.RealizedPL, 1e-9)
	assert.InDelta(t, 10, report.TotalCommissions, 1e-9)

	require.Len(t, report.Portfolio, 2)
	assert.Equal(t, "AAPL", report.Portfolio[0].Symbol)
	assert.InDelta(t, 120, report.Portfolio[0].CurrentPrice, 1e-9)
	assert.InDelta(t, 1200, report.Portfolio[0].CurrentValue, 1e-9)
	assert.InDelta(t, 200, report.Portfolio[0].UnrealizedPL, 1e-9)
	assert.Equal(t, "MSFT", report.Portfolio[1].Symbol)
}

func TestValuateZeroContributionsZeroPL(t *testing.T) {
	report := Valuate(context.Background(), NewLedger(), staticQuotes(nil))

	assert.Zero(t, report.OverallPL)
	assert.Zero(t, report.OverallPLPercentage)
	assert.Zero(t, report.TotalEquity)
	assert.Empty(t, report.Portfolio)

	// An empty portfolio still marshals as a JSON array, not null.
	assert.NotNil(t, report.Portfolio)
	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"portfolio":[]`)
}

func TestValuateQuoteFallbackMakesPositionFlat(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Deposit(1000))
	require.NoError(t, l.Buy("GHOST", 4, 25, 0))

	report := Valuate(context.Background(), l, staticQuotes(nil))

	require.Len(t, report.Portfolio, 1)
	// Valued at average cost: current value equals invested, zero unrealized.
	assert.InDelta(t, 25, report.Portfolio[0].CurrentPrice, 1e-9)
	assert.InDelta(t, 100, report.Portfolio[0].CurrentValue, 1e-9)
	assert.Zero(t, report.Portfolio[0].UnrealizedPL)
	assert.Zero(t, report.UnrealizedPL)
}

func TestValuateLiquidationCountsAsContribution(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Deposit(100))
	require.NoError(t, l.Buy("DUST", 0.5, 1, 0))
	SweepDust(context.Background(), l, staticQuotes(map[string]float64{"DUST": 0.80}))

	report := Valuate(context.Background(), l, staticQuotes(nil))

	// 100 deposited + 0.40 credited by the sweep.
	assert.InDelta(t, 100.40, report.NetContributions, 1e-9)
	// Equity is 99.90: bought at 0.50, swept back at 0.40.
	assert.InDelta(t, 99.90, report.TotalEquity, 1e-9)
	assert.InDelta(t, -0.50, report.OverallPL, 1e-9)
}

func TestValuateDoesNotMutateLedger(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Deposit(1000))
	require.NoError(t, l.Buy("AAPL", 2, 100, 1))

	txBefore := len(l.Transactions)
	balanceBefore := l.Balance

	Valuate(context.Background(), l, staticQuotes(map[string]float64{"AAPL": 50}))

	assert.InDelta(t, balanceBefore, l.Balance, 1e-9)
	assert.Len(t, l.Transactions, txBefore)
	assert.InDelta(t, 2, l.Positions["AAPL"].Quantity, 1e-9)
}
