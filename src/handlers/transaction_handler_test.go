package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/username/smartvest/backend/src/database"
	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/model"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const testSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	balance REAL NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 0,
	is_public INTEGER NOT NULL DEFAULT 0,
	profile_image TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE positions (
	user_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	quantity REAL NOT NULL,
	total_cost REAL NOT NULL,
	avg_price REAL NOT NULL,
	PRIMARY KEY (user_id, symbol),
	FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);
CREATE TABLE transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('buy', 'sell', 'deposit', 'liquidation')),
	payload TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);
CREATE TABLE chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	session_id TEXT NOT NULL,
	session_name TEXT NOT NULL DEFAULT 'Untitled',
	role TEXT NOT NULL CHECK (role IN ('user', 'ai')),
	message TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`

// setupTestDB opens a throwaway database, installs the schema and points the
// package-level connection at it for handlers that read users directly.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	previous := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = previous
		db.Close()
	})
	return db
}

func seedUser(t *testing.T, db *sql.DB, username string, balance float64, public bool) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO users (username, email, password, balance, is_public) VALUES (?, ?, ?, ?, ?)`,
		username, username+"@example.com", "x", balance, public,
	)
	if err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func authedRequest(t *testing.T, userID int64, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	ctx := context.WithValue(req.Context(), userIDContextKey, userID)
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestHandleBuy(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "alice", 10000, false)
	h := NewTransactionHandler(model.NewLedgerStore(db))

	rec := httptest.NewRecorder()
	h.HandleBuy(rec, authedRequest(t, userID, http.MethodPost, "/api/transaction/buy", map[string]any{
		"symbol": "aapl", "quantity": 10, "price": 100, "commission": 5,
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if got := body["new_balance"].(float64); got != 8995.00 {
		t.Errorf("new_balance = %v, want 8995", got)
	}

	var quantity float64
	if err := db.QueryRow(`SELECT quantity FROM positions WHERE user_id = ? AND symbol = 'AAPL'`, userID).Scan(&quantity); err != nil {
		t.Fatalf("position not persisted: %v", err)
	}
	if quantity != 10 {
		t.Errorf("persisted quantity = %v, want 10", quantity)
	}
}

func TestHandleBuyInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "alice", 10, false)
	h := NewTransactionHandler(model.NewLedgerStore(db))

	rec := httptest.NewRecorder()
	h.HandleBuy(rec, authedRequest(t, userID, http.MethodPost, "/api/transaction/buy", map[string]any{
		"symbol": "AAPL", "quantity": 10, "price": 100,
	}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	// Nothing was persisted.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("transaction rows = %d, want 0", count)
	}
}

func TestHandleBuyRejectsBadSymbol(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "alice", 10000, false)
	h := NewTransactionHandler(model.NewLedgerStore(db))

	rec := httptest.NewRecorder()
	h.HandleBuy(rec, authedRequest(t, userID, http.MethodPost, "/api/transaction/buy", map[string]any{
		"symbol": "AA PL!", "quantity": 1, "price": 100,
	}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSellFlow(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "alice", 10000, false)
	h := NewTransactionHandler(model.NewLedgerStore(db))

	rec := httptest.NewRecorder()
	h.HandleBuy(rec, authedRequest(t, userID, http.MethodPost, "/api/transaction/buy", map[string]any{
		"symbol": "AAPL", "quantity": 10, "price": 100, "commission": 5,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("buy failed: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.HandleSell(rec, authedRequest(t, userID, http.MethodPost, "/api/transaction/sell", map[string]any{
		"symbol": "AAPL", "quantity": 4, "price": 120, "commission": 2,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("sell failed: %s", rec.Body.String())
	}
	body := decodeBody(t, rec)
	if got := body["new_balance"].(float64); got != 9473.00 {
		t.Errorf("new_balance = %v, want 9473", got)
	}

	// Selling a position the user does not hold is a client error.
	rec = httptest.NewRecorder()
	h.HandleSell(rec, authedRequest(t, userID, http.MethodPost, "/api/transaction/sell", map[string]any{
		"symbol": "GOOG", "quantity": 1, "price": 100,
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleDeposit(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "alice", 0, false)
	h := NewTransactionHandler(model.NewLedgerStore(db))

	rec := httptest.NewRecorder()
	h.HandleDeposit(rec, authedRequest(t, userID, http.MethodPost, "/api/transaction/deposit", map[string]any{
		"amount": 2500.50,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if got := body["new_balance"].(float64); got != 2500.50 {
		t.Errorf("new_balance = %v, want 2500.50", got)
	}

	rec = httptest.NewRecorder()
	h.HandleDeposit(rec, authedRequest(t, userID, http.MethodPost, "/api/transaction/deposit", map[string]any{
		"amount": -5,
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative deposit status = %d, want 400", rec.Code)
	}
}

func TestConcurrentDepositsDoNotLoseUpdates(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "alice", 0, false)
	h := NewTransactionHandler(model.NewLedgerStore(db))

	const workers = 4
	requests := make([]*http.Request, workers)
	for i := range requests {
		requests[i] = authedRequest(t, userID, http.MethodPost, "/api/transaction/deposit", map[string]any{
			"amount": 100,
		})
	}

	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			h.HandleDeposit(rec, requests[i])
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("deposit %d status = %d, want 200", i, code)
		}
	}

	var balance float64
	if err := db.QueryRow(`SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
		t.Fatal(err)
	}
	if balance != workers*100 {
		t.Errorf("final balance = %v, want %d", balance, workers*100)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != workers {
		t.Errorf("deposit rows = %d, want %d", count, workers)
	}
}

func TestHandleUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	h := NewTransactionHandler(model.NewLedgerStore(db))

	rec := httptest.NewRecorder()
	h.HandleDeposit(rec, authedRequest(t, 999, http.MethodPost, "/api/transaction/deposit", map[string]any{
		"amount": 100,
	}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "alice", 10000, false)
	h := NewTransactionHandler(model.NewLedgerStore(db))

	rec := httptest.NewRecorder()
	h.HandleHistory(rec, authedRequest(t, userID, http.MethodGet, "/api/transaction/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var history []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("fresh account history = %d entries, want 0", len(history))
	}

	buyRec := httptest.NewRecorder()
	h.HandleDeposit(buyRec, authedRequest(t, userID, http.MethodPost, "/api/transaction/deposit", map[string]any{"amount": 100}))
	buyRec = httptest.NewRecorder()
	h.HandleBuy(buyRec, authedRequest(t, userID, http.MethodPost, "/api/transaction/buy", map[string]any{
		"symbol": "AAPL", "quantity": 1, "price": 50,
	}))

	rec = httptest.NewRecorder()
	h.HandleHistory(rec, authedRequest(t, userID, http.MethodGet, "/api/transaction/history", nil))
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0]["type"] != "deposit" || history[1]["type"] != "buy" {
		t.Errorf("history order = [%v, %v], want [deposit, buy]", history[0]["type"], history[1]["type"])
	}
}
