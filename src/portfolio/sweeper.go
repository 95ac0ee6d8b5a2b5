package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/models"
)

// DustThreshold is the absolute market value below which a position is
// liquidated. It is a fixed dollar amount, not a fraction of the portfolio.
const DustThreshold = 1.00

// SweepDust liquidates every position whose current market value is below
// DustThreshold, crediting the proceeds to cash and recording one
// liquidation transaction for the whole batch. Positions without a live
// quote are valued at average cost, so an unavailable provider never makes
// the sweep fail.
//
// When nothing qualifies the ledger is left untouched: no balance change and
// no transaction. Running the sweep twice in a row is therefore a no-op the
// second time.
func SweepDust(ctx context.Context, l *Ledger, quotes QuoteProvider) []string {
	var (
		swept      []string
		sweptValue float64
	)

	for symbol, pos := range l.Positions {
		price, ok := quotes.Quote(ctx, symbol)
		if !ok {
			price = pos.AvgPrice
		}
		currentValue := pos.Quantity * price
		if currentValue < DustThreshold {
			swept = append(swept, symbol)
			sweptValue += currentValue
		}
	}

	if len(swept) == 0 {
		return nil
	}
	sort.Strings(swept)

	for _, symbol := range swept {
		delete(l.Positions, symbol)
	}
	amount := Round2(sweptValue)
	l.Balance += amount
	l.record(models.LiquidationTransaction{
		Amount:  amount,
		Symbols: swept,
		Date:    time.Now().UTC(),
	})

	logger.L.Info("Swept dust positions", "symbols", swept, "amount", amount)
	return swept
}
