package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/portfolio"
)

// finnhubQuoteResponse is the /quote payload; "c" is the current price.
type finnhubQuoteResponse struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
}

type quoteServiceImpl struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	quoteCache *cache.Cache
}

// NewQuoteService builds a Finnhub-backed quote service. The API key and
// base URL are fixed at construction. Quotes are cached for cacheTTL so the
// sweep-then-valuate sequence of a profile request does not hit the provider
// twice per symbol.
func NewQuoteService(baseURL, apiKey string, timeout, cacheTTL time.Duration) QuoteService {
	return &quoteServiceImpl{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		quoteCache: cache.New(cacheTTL, 2*cacheTTL),
	}
}

// Quote returns the live price for a symbol. Any failure — missing API key,
// transport error, non-200 status, malformed body, non-positive price —
// reports unavailable so the caller can fall back to average cost. Quote
// never returns an error.
func (s *quoteServiceImpl) Quote(ctx context.Context, symbol string) (float64, bool) {
	if cached, found := s.quoteCache.Get(symbol); found {
		price := cached.(float64)
		return price, price > 0
	}

	price, err := s.fetchQuote(ctx, symbol)
	if err != nil {
		logger.L.Warn("Quote lookup failed, falling back to average cost", "symbol", symbol, "error", err)
		// Negative caching: remember the miss so a portfolio full of dead
		// symbols does not hammer the provider on every request.
		s.quoteCache.SetDefault(symbol, 0.0)
		return 0, false
	}

	s.quoteCache.SetDefault(symbol, price)
	return price, true
}

// Prefetch warms the cache for all symbols concurrently.
func (s *quoteServiceImpl) Prefetch(ctx context.Context, symbols []string) {
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		if _, found := s.quoteCache.Get(symbol); found {
			continue
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			s.Quote(ctx, sym)
		}(symbol)
	}
	wg.Wait()
}

func (s *quoteServiceImpl) fetchQuote(ctx context.Context, symbol string) (float64, error) {
	if s.apiKey == "" {
		return 0, fmt.Errorf("quote provider API key is not configured")
	}

	endpoint := fmt.Sprintf("%s/quote?symbol=%s&token=%s", s.baseURL, url.QueryEscape(symbol), url.QueryEscape(s.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("creating quote request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote provider returned status %d", resp.StatusCode)
	}

	var payload finnhubQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decoding quote response: %w", err)
	}

	// Finnhub reports 0 for unknown symbols.
	if payload.Current <= 0 {
		return 0, fmt.Errorf("no price available for %s", symbol)
	}
	return payload.Current, nil
}

var _ portfolio.QuoteProvider = (*quoteServiceImpl)(nil)
