package models

import "encoding/json"

// PositionValue is a position enhanced with its live quote and derived P&L.
type PositionValue struct {
	Position
	CurrentPrice  float64 `json:"current_price"`
	CurrentValue  float64 `json:"current_value"`
	TotalInvested float64 `json:"total_invested"`
	UnrealizedPL  float64 `json:"unrealized_pl"`
}

// ValuationReport is the full output of the valuation engine for one ledger.
// All monetary fields are rounded to two decimals at the point of output.
type ValuationReport struct {
	Balance             float64         `json:"balance"`
	Portfolio           []PositionValue `json:"portfolio"`
	InvestedAmount      float64         `json:"invested_amount"`
	TotalPortfolioValue float64         `json:"total_portfolio_value"`
	NetContributions    float64         `json:"net_contributions"`
	TotalEquity         float64         `json:"total_equity"`
	OverallPL           float64         `json:"overall_pl"`
	OverallPLPercentage float64         `json:"overall_pl_percentage"`
	UnrealizedPL        float64         `json:"unrealized_pl"`
	RealizedPL          float64         `json:"realized_pl"`
	TotalCommissions    float64         `json:"total_commissions"`
}

// LeaderboardEntry pairs a user's public identity with their valuation
// report for the ranking endpoint.
type LeaderboardEntry struct {
	UserID       int64             `json:"id"`
	Username     string            `json:"name"`
	ProfileImage string            `json:"profile_image,omitempty"`
	ValuationReport
	Transactions []json.RawMessage `json:"transactions"`
}
