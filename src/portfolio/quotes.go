package portfolio

import "context"

// QuoteProvider supplies a current market price for a symbol. The boolean
// reports availability; callers fall back to average cost when it is false.
// Implementations must absorb transport failures rather than panic or block
// past their own timeout.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (float64, bool)
}

// QuoteFunc adapts a plain function to the QuoteProvider interface.
type QuoteFunc func(ctx context.Context, symbol string) (float64, bool)

func (f QuoteFunc) Quote(ctx context.Context, symbol string) (float64, bool) {
	return f(ctx, symbol)
}
