package portfolio

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/username/smartvest/backend/src/models"
)

// Valuate computes the full valuation report for a ledger snapshot. It never
// mutates the ledger; run SweepDust first if dust positions should be
// liquidated before valuation.
//
// One quote lookup is issued per position, in parallel, since each is an
// independent read-only call. Results are assembled by symbol, so completion
// order does not matter. A position whose quote is unavailable is valued at
// its average cost.
func Valuate(ctx context.Context, l *Ledger, quotes QuoteProvider) models.ValuationReport {
	positions := l.SortedPositions()

	var mu sync.Mutex
	prices := make(map[string]float64, len(positions))

	g, gctx := errgroup.WithContext(ctx)
	for _, pos := range positions {
		g.Go(func() error {
			price, ok := quotes.Quote(gctx, pos.Symbol)
			if !ok {
				price = pos.AvgPrice
			}
			mu.Lock()
			prices[pos.Symbol] = price
			mu.Unlock()
			return nil
		})
	}
	// Workers never return an error; quote failures fall back to avg cost.
	_ = g.Wait()

	// Non-nil even when empty so the report marshals as [] rather than null.
	enhanced := make([]models.PositionValue, 0, len(positions))
	var (
		totalPortfolioValue float64
		investedAmount      float64
		unrealizedPL        float64
	)
	for _, pos := range positions {
		totalInvested := Round2(pos.TotalCost)
		currentValue := Round2(pos.Quantity * prices[pos.Symbol])
		positionPL := Round2(currentValue - totalInvested)

		totalPortfolioValue += currentValue
		investedAmount += totalInvested
		unrealizedPL += positionPL

		enhanced = append(enhanced, models.PositionValue{
			Position:      *pos,
			CurrentPrice:  prices[pos.Symbol],
			CurrentValue:  currentValue,
			TotalInvested: totalInvested,
			UnrealizedPL:  positionPL,
		})
	}

	var netContributions, totalCommissions float64
	for _, tx := range l.Transactions {
		switch t := tx.(type) {
		case models.DepositTransaction:
			netContributions += t.Amount
		case models.LiquidationTransaction:
			netContributions += t.Amount
		case models.BuyTransaction:
			totalCommissions += t.Commission
		case models.SellTransaction:
			totalCommissions += t.Commission
		}
	}

	totalEquity := l.Balance + totalPortfolioValue

	// An account with no contributions has no baseline to measure against,
	// so its P&L is defined as exactly zero.
	var overallPL, overallPLPercentage float64
	if netContributions > 0 {
		overallPL = Round2(totalEquity - netContributions)
		overallPLPercentage = Round2(overallPL / netContributions * 100)
	}

	return models.ValuationReport{
		Balance:             Round2(l.Balance),
		Portfolio:           enhanced,
		InvestedAmount:      Round2(investedAmount),
		TotalPortfolioValue: Round2(totalPortfolioValue),
		NetContributions:    Round2(netContributions),
		TotalEquity:         Round2(totalEquity),
		OverallPL:           overallPL,
		OverallPLPercentage: overallPLPercentage,
		UnrealizedPL:        Round2(unrealizedPL),
		RealizedPL:          Round2(overallPL - unrealizedPL),
		TotalCommissions:    Round2(totalCommissions),
	}
}
