package portfolio

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/username/smartvest/backend/src/models"
)

// Round2 rounds a monetary value to two decimal places. Comparisons against
// cash balances go through this so that float residues like 1004.9999999999
// do not reject an affordable trade.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Ledger is one user's cash balance, position set and append-only
// transaction log. All mutation goes through Buy, Sell, Deposit and the dust
// sweeper; every operation validates before touching any field.
//
// A Ledger is not safe for concurrent use. Same-user requests are serialized
// by the storage layer: Save checks Version and refuses to overwrite a
// ledger another request persisted in the meantime.
type Ledger struct {
	Balance      float64
	Positions    map[string]*models.Position
	Transactions []models.Transaction

	// Version is the optimistic concurrency stamp the store read alongside
	// the balance. Save compares it against the row and bumps it.
	Version int64

	// appended tracks transactions added since the ledger was loaded, so the
	// store can persist only the new tail.
	appended []models.Transaction
}

// NewLedger returns an empty ledger: zero balance, no positions, no history.
func NewLedger() *Ledger {
	return &Ledger{Positions: make(map[string]*models.Position)}
}

// Appended returns the transactions recorded since the ledger was loaded.
func (l *Ledger) Appended() []models.Transaction {
	return l.appended
}

func (l *Ledger) record(tx models.Transaction) {
	l.Transactions = append(l.Transactions, tx)
	l.appended = append(l.appended, tx)
}

// NormalizeSymbol uppercases and trims a ticker. Position keys are always in
// this form.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Buy purchases quantity shares at price, paying commission from cash on top
// of the trade value. The commission reduces the balance but is not part of
// the position's cost basis.
func (l *Ledger) Buy(symbol string, quantity, price, commission float64) error {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("%w: symbol cannot be empty", ErrInvalidInput)
	}
	if quantity <= 0 || price <= 0 || commission < 0 {
		return ErrInvalidInput
	}

	tradeCost := quantity * price
	fundsRequired := Round2(tradeCost + commission)
	if Round2(l.Balance) < fundsRequired {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, fundsRequired, l.Balance)
	}

	if pos, ok := l.Positions[symbol]; ok {
		pos.Quantity += quantity
		pos.TotalCost += tradeCost
		pos.AvgPrice = pos.TotalCost / pos.Quantity
	} else {
		l.Positions[symbol] = &models.Position{
			Symbol:    symbol,
			Quantity:  quantity,
			TotalCost: tradeCost,
			AvgPrice:  price,
		}
	}

	l.Balance -= fundsRequired
	l.record(models.BuyTransaction{
		Symbol:     symbol,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Date:       time.Now().UTC(),
	})
	return nil
}

// Sell disposes of quantity shares at price. Cost basis is removed in
// proportion to average cost, not sale price, so the remaining position's
// basis stays conserved. A position whose quantity falls to the epsilon
// threshold is removed entirely.
func (l *Ledger) Sell(symbol string, quantity, price, commission float64) error {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("%w: symbol cannot be empty", ErrInvalidInput)
	}
	if quantity <= 0 || price <= 0 || commission < 0 {
		return ErrInvalidInput
	}

	pos, ok := l.Positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, symbol)
	}
	if pos.Quantity < quantity {
		return fmt.Errorf("%w: have %g, tried to sell %g", ErrInsufficientQuantity, pos.Quantity, quantity)
	}

	revenue := price*quantity - commission
	if revenue < 0 {
		return ErrInvalidCommission
	}

	pos.TotalCost -= pos.AvgPrice * quantity
	pos.Quantity -= quantity
	if pos.Empty() {
		// Residual cost basis here is ~0 and is discarded with the position.
		delete(l.Positions, symbol)
	}

	l.Balance += revenue
	l.record(models.SellTransaction{
		Symbol:     symbol,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Date:       time.Now().UTC(),
	})
	return nil
}

// Deposit credits cash to the ledger. Deposits are the baseline against
// which overall P&L is measured.
func (l *Ledger) Deposit(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.Balance += amount
	l.record(models.DepositTransaction{
		Amount: amount,
		Date:   time.Now().UTC(),
	})
	return nil
}

// SortedPositions returns the positions ordered by symbol, for deterministic
// output.
func (l *Ledger) SortedPositions() []*models.Position {
	out := make([]*models.Position, 0, len(l.Positions))
	for _, p := range l.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
