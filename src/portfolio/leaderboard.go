package portfolio

import (
	"context"
	"sort"

	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/models"
)

// Leaderboard sort keys. Any other value falls back to SortByOverallPL.
const (
	SortByOverallPL           = "overall_pl"
	SortByOverallPLPercentage = "overall_pl_percentage"

	DefaultLeaderboardLimit = 3
)

// RankedLedger is one candidate for the leaderboard: a user's ledger plus
// the identity fields exposed in the ranking.
type RankedLedger struct {
	UserID       int64
	Username     string
	ProfileImage string
	Public       bool
	Ledger       *Ledger
}

// Rank values every public ledger, sorts descending by the chosen key and
// truncates to limit. Non-public ledgers are filtered out before any
// valuation happens; ties keep input order.
func Rank(ctx context.Context, entries []RankedLedger, quotes QuoteProvider, sortBy string, limit int) []models.LeaderboardEntry {
	if sortBy != SortByOverallPL && sortBy != SortByOverallPLPercentage {
		sortBy = SortByOverallPL
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	ranked := make([]models.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Public {
			continue
		}
		report := Valuate(ctx, e.Ledger, quotes)
		txs, err := models.MarshalTransactions(e.Ledger.Transactions)
		if err != nil {
			// The entry stays ranked; only its history is omitted.
			logger.L.Error("Failed to encode transaction history for leaderboard entry", "userID", e.UserID, "error", err)
			txs = nil
		}
		ranked = append(ranked, models.LeaderboardEntry{
			UserID:          e.UserID,
			Username:        e.Username,
			ProfileImage:    e.ProfileImage,
			ValuationReport: report,
			Transactions:    txs,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if sortBy == SortByOverallPLPercentage {
			return ranked[i].OverallPLPercentage > ranked[j].OverallPLPercentage
		}
		return ranked[i].OverallPL > ranked[j].OverallPL
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
