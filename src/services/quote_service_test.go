package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/username/smartvest/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestQuoteReturnsCurrentPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("expected symbol AAPL, got %q", got)
		}
		if got := r.URL.Query().Get("token"); got != "test-key" {
			t.Errorf("expected token test-key, got %q", got)
		}
		fmt.Fprint(w, `{"c":187.42,"h":190,"l":185,"o":186,"pc":184}`)
	}))
	defer server.Close()

	svc := NewQuoteService(server.URL, "test-key", 5*time.Second, time.Minute)

	price, ok := svc.Quote(context.Background(), "AAPL")
	if !ok {
		t.Fatal("expected quote to be available")
	}
	if price != 187.42 {
		t.Errorf("expected price 187.42, got %v", price)
	}
}

func TestQuoteUnavailableOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewQuoteService(server.URL, "test-key", 5*time.Second, time.Minute)

	if _, ok := svc.Quote(context.Background(), "AAPL"); ok {
		t.Error("expected quote to be unavailable on non-200 status")
	}
}

func TestQuoteUnavailableOnZeroPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Finnhub's shape for an unknown symbol.
		fmt.Fprint(w, `{"c":0,"h":0,"l":0,"o":0,"pc":0}`)
	}))
	defer server.Close()

	svc := NewQuoteService(server.URL, "test-key", 5*time.Second, time.Minute)

	if _, ok := svc.Quote(context.Background(), "NOSUCH"); ok {
		t.Error("expected quote to be unavailable for zero price")
	}
}

func TestQuoteUnavailableWithoutAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider should not be called without an API key")
	}))
	defer server.Close()

	svc := NewQuoteService(server.URL, "", 5*time.Second, time.Minute)

	if _, ok := svc.Quote(context.Background(), "AAPL"); ok {
		t.Error("expected quote to be unavailable without API key")
	}
}

func TestQuoteCachesSuccesses(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"c":100.5}`)
	}))
	defer server.Close()

	svc := NewQuoteService(server.URL, "test-key", 5*time.Second, time.Minute)

	for i := 0; i < 3; i++ {
		price, ok := svc.Quote(context.Background(), "AAPL")
		if !ok || price != 100.5 {
			t.Fatalf("quote %d: got (%v, %v)", i, price, ok)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 provider call, got %d", got)
	}
}

func TestQuoteCachesFailures(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewQuoteService(server.URL, "test-key", 5*time.Second, time.Minute)

	for i := 0; i < 3; i++ {
		if _, ok := svc.Quote(context.Background(), "DEAD"); ok {
			t.Fatal("expected quote to be unavailable")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 provider call for a cached miss, got %d", got)
	}
}

func TestPrefetchWarmsCache(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"c":50}`)
	}))
	defer server.Close()

	svc := NewQuoteService(server.URL, "test-key", 5*time.Second, time.Minute)

	svc.Prefetch(context.Background(), []string{"AAPL", "MSFT", "GOOG"})
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 provider calls from prefetch, got %d", got)
	}

	// Subsequent lookups hit the cache only.
	for _, sym := range []string{"AAPL", "MSFT", "GOOG"} {
		if _, ok := svc.Quote(context.Background(), sym); !ok {
			t.Errorf("expected cached quote for %s", sym)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected no further provider calls, got %d", got)
	}
}
