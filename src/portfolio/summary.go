package portfolio

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/username/smartvest/backend/src/models"
)

// FormatCurrency renders a monetary value as $1,234.56.
func FormatCurrency(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// Summarize renders a valuation report as the plain-text profile summary fed
// to the AI assistant as conversation context. It is a view over the report;
// no accounting happens here.
func Summarize(name string, report models.ValuationReport, transactions []models.Transaction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User Profile Summary for %s:\n\n", name)

	b.WriteString("--- Financial Overview ---\n")
	fmt.Fprintf(&b, "Total Equity: %s\n", FormatCurrency(report.TotalEquity))
	fmt.Fprintf(&b, "Portfolio Value: %s\n", FormatCurrency(report.TotalPortfolioValue))
	fmt.Fprintf(&b, "Cash Balance: %s\n", FormatCurrency(report.Balance))
	fmt.Fprintf(&b, "Unrealized P/L: %s\n", FormatCurrency(report.UnrealizedPL))
	fmt.Fprintf(&b, "Realized P/L: %s\n", FormatCurrency(report.RealizedPL))
	fmt.Fprintf(&b, "Total Commissions Paid: %s\n\n", FormatCurrency(report.TotalCommissions))

	b.WriteString("--- Current Holdings ---\n")
	if len(report.Portfolio) == 0 {
		b.WriteString("No holdings in the portfolio.\n")
	} else {
		for _, pos := range report.Portfolio {
			fmt.Fprintf(&b, "%s: %.2f shares, Current Value: %s, Unrealized P/L: %s\n",
				pos.Symbol, pos.Quantity, FormatCurrency(pos.CurrentValue), FormatCurrency(pos.UnrealizedPL))
		}
	}
	b.WriteString("\n")

	b.WriteString("--- Transaction History ---\n")
	if len(transactions) == 0 {
		b.WriteString("No transaction history.\n")
	} else {
		for _, tx := range transactions {
			switch t := tx.(type) {
			case models.BuyTransaction:
				fmt.Fprintf(&b, "BUY %s: %.2f shares at %s\n", t.Symbol, t.Quantity, FormatCurrency(t.Price))
			case models.SellTransaction:
				fmt.Fprintf(&b, "SELL %s: %.2f shares at %s\n", t.Symbol, t.Quantity, FormatCurrency(t.Price))
			case models.DepositTransaction:
				fmt.Fprintf(&b, "DEPOSIT: %s\n", FormatCurrency(t.Amount))
			case models.LiquidationTransaction:
				fmt.Fprintf(&b, "LIQUIDATION of %s: %s\n", strings.Join(t.Symbols, ", "), FormatCurrency(t.Amount))
			}
		}
	}

	return b.String()
}
