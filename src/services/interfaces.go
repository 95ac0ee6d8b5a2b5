package services

import (
	"context"

	"github.com/username/smartvest/backend/src/portfolio"
)

// QuoteService fetches live market prices. It extends the engine's
// QuoteProvider with a batch prefetch used to warm the cache before a
// valuation fans out.
type QuoteService interface {
	portfolio.QuoteProvider
	// Prefetch warms the quote cache for a set of symbols. Failures are
	// absorbed; valuation falls back per symbol.
	Prefetch(ctx context.Context, symbols []string)
}

// AssistantService produces AI replies for the chat endpoint, seeded with
// the user's profile summary. It consumes valuation output as text and
// implements no accounting logic.
type AssistantService interface {
	Reply(ctx context.Context, profileSummary string, history []AssistantTurn, message string) (string, error)
}

// AssistantTurn is one prior exchange in a chat session.
type AssistantTurn struct {
	Role    string // "user" or "ai"
	Message string
}
