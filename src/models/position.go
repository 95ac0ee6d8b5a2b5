package models

// PositionEpsilon is the quantity below which a holding is considered empty.
// Binary floating point leaves residues like 1e-15 after selling a full
// position, so positions at or below this threshold are removed rather than
// kept at zero.
const PositionEpsilon = 1e-6

// Position is one held symbol inside a user's portfolio. TotalCost is the
// cumulative cost basis of the current quantity; commissions are not part of
// it.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	TotalCost float64 `json:"total_cost"`
	AvgPrice  float64 `json:"avg_price"`
}

// Empty reports whether the position's quantity is at or below the removal
// threshold.
func (p *Position) Empty() bool {
	return p.Quantity <= PositionEpsilon
}
