package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/username/smartvest/backend/src/model"
)

func postJSON(t *testing.T, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	return httptest.NewRequest(http.MethodPost, target, &buf)
}

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	h := newTestUserHandler(t, model.NewLedgerStore(db), &stubQuoteService{})

	rec := httptest.NewRecorder()
	h.RegisterUserHandler(rec, postJSON(t, "/api/auth/register", map[string]any{
		"name": "alice", "email": "Alice@Example.com", "password": "hunter22",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var registered struct {
		User struct {
			ID      int64   `json:"id"`
			Name    string  `json:"name"`
			Email   string  `json:"email"`
			Balance float64 `json:"balance"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&registered); err != nil {
		t.Fatal(err)
	}
	if registered.User.Email != "alice@example.com" {
		t.Errorf("email not lowercased: %q", registered.User.Email)
	}
	if registered.User.Balance != 0 {
		t.Errorf("new account balance = %v, want 0", registered.User.Balance)
	}

	rec = httptest.NewRecorder()
	h.LoginUserHandler(rec, postJSON(t, "/api/auth/login", map[string]any{
		"email": "alice@example.com", "password": "hunter22",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["access_token"] == nil || body["access_token"] == "" {
		t.Error("expected access_token in login response")
	}

	rec = httptest.NewRecorder()
	h.LoginUserHandler(rec, postJSON(t, "/api/auth/login", map[string]any{
		"email": "alice@example.com", "password": "wrong",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	db := setupTestDB(t)
	h := newTestUserHandler(t, model.NewLedgerStore(db), &stubQuoteService{})

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing name", map[string]any{"email": "a@b.com", "password": "hunter22"}, http.StatusBadRequest},
		{"bad email", map[string]any{"name": "alice", "email": "not-an-email", "password": "hunter22"}, http.StatusBadRequest},
		{"short password", map[string]any{"name": "alice", "email": "a@b.com", "password": "abc"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.RegisterUserHandler(rec, postJSON(t, "/api/auth/register", tc.body))
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	db := setupTestDB(t)
	h := newTestUserHandler(t, model.NewLedgerStore(db), &stubQuoteService{})

	rec := httptest.NewRecorder()
	h.RegisterUserHandler(rec, postJSON(t, "/api/auth/register", map[string]any{
		"name": "alice", "email": "a@b.com", "password": "hunter22",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.RegisterUserHandler(rec, postJSON(t, "/api/auth/register", map[string]any{
		"name": "alice2", "email": "a@b.com", "password": "hunter22",
	}))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate email status = %d, want 409", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.RegisterUserHandler(rec, postJSON(t, "/api/auth/register", map[string]any{
		"name": "ALICE", "email": "other@b.com", "password": "hunter22",
	}))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate username status = %d, want 409", rec.Code)
	}
}
