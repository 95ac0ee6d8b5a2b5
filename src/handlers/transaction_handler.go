package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/model"
	"github.com/username/smartvest/backend/src/models"
	"github.com/username/smartvest/backend/src/portfolio"
	"github.com/username/smartvest/backend/src/security/validation"
	"github.com/username/smartvest/backend/src/utils"
)

type TransactionHandler struct {
	store *model.LedgerStore
}

func NewTransactionHandler(store *model.LedgerStore) *TransactionHandler {
	return &TransactionHandler{store: store}
}

type tradePayload struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
}

// statusForLedgerError maps the ledger's error taxonomy onto HTTP statuses.
// Validation and business-rule failures are client errors; an unknown error
// is a storage failure and surfaces as internal.
func statusForLedgerError(err error) int {
	switch {
	case errors.Is(err, portfolio.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, portfolio.ErrInvalidInput),
		errors.Is(err, portfolio.ErrInsufficientFunds),
		errors.Is(err, portfolio.ErrPositionNotFound),
		errors.Is(err, portfolio.ErrInsufficientQuantity),
		errors.Is(err, portfolio.ErrInvalidCommission),
		errors.Is(err, portfolio.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// applyLedgerOp runs one mutation as a load-mutate-save cycle through the
// store's versioned Update, so concurrent requests for the same user retry
// against fresh state instead of losing updates. A failed mutation persists
// nothing.
func (h *TransactionHandler) applyLedgerOp(w http.ResponseWriter, r *http.Request, op func(*portfolio.Ledger) error) (*portfolio.Ledger, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return nil, false
	}

	ledger, err := h.store.Update(userID, op)
	if err != nil {
		switch {
		case errors.Is(err, portfolio.ErrUserNotFound):
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
		case statusForLedgerError(err) == http.StatusBadRequest:
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, portfolio.ErrVersionConflict):
			logger.FromContext(r.Context()).Warn("Ledger update kept conflicting, giving up", "error", err)
			utils.SendJSONError(w, "Portfolio is busy, please retry", http.StatusConflict)
		default:
			logger.FromContext(r.Context()).Error("Failed to update ledger", "error", err)
			utils.SendJSONError(w, "Failed to update portfolio", http.StatusInternalServerError)
		}
		return nil, false
	}
	return ledger, true
}

func decodeTrade(w http.ResponseWriter, r *http.Request) (tradePayload, bool) {
	var payload tradePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid or missing data. Required: symbol, quantity, price.", http.StatusBadRequest)
		return payload, false
	}
	payload.Symbol = portfolio.NormalizeSymbol(validation.SanitizeText(payload.Symbol))
	if err := validation.ValidateSymbol(payload.Symbol); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return payload, false
	}
	return payload, true
}

// HandleBuy executes a purchase against the user's ledger.
func (h *TransactionHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeTrade(w, r)
	if !ok {
		return
	}

	ledger, ok := h.applyLedgerOp(w, r, func(l *portfolio.Ledger) error {
		return l.Buy(payload.Symbol, payload.Quantity, payload.Price, payload.Commission)
	})
	if !ok {
		return
	}

	logger.FromContext(r.Context()).Info("Stock purchased", "symbol", payload.Symbol, "quantity", payload.Quantity)
	utils.SendJSON(w, map[string]any{
		"message":     "Stock purchased successfully",
		"new_balance": portfolio.Round2(ledger.Balance),
	}, http.StatusOK)
}

// HandleSell executes a sale against the user's ledger.
func (h *TransactionHandler) HandleSell(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeTrade(w, r)
	if !ok {
		return
	}

	ledger, ok := h.applyLedgerOp(w, r, func(l *portfolio.Ledger) error {
		return l.Sell(payload.Symbol, payload.Quantity, payload.Price, payload.Commission)
	})
	if !ok {
		return
	}

	logger.FromContext(r.Context()).Info("Stock sold", "symbol", payload.Symbol, "quantity", payload.Quantity)
	utils.SendJSON(w, map[string]any{
		"message":     "Stock sold successfully",
		"new_balance": portfolio.Round2(ledger.Balance),
	}, http.StatusOK)
}

// HandleDeposit credits cash to the user's ledger.
func (h *TransactionHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Request must include amount", http.StatusBadRequest)
		return
	}

	ledger, ok := h.applyLedgerOp(w, r, func(l *portfolio.Ledger) error {
		return l.Deposit(payload.Amount)
	})
	if !ok {
		return
	}

	logger.FromContext(r.Context()).Info("Funds deposited", "amount", payload.Amount)
	utils.SendJSON(w, map[string]any{
		"message":     "Deposit successful",
		"new_balance": portfolio.Round2(ledger.Balance),
	}, http.StatusOK)
}

// HandleHistory returns the user's full transaction log in insertion order.
func (h *TransactionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ledger, err := h.store.Find(userID)
	if err != nil {
		if errors.Is(err, portfolio.ErrUserNotFound) {
			utils.SendJSON(w, []any{}, http.StatusOK)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to load transaction history", "error", err)
		utils.SendJSONError(w, "Failed to load transaction history", http.StatusInternalServerError)
		return
	}

	txs, err := models.MarshalTransactions(ledger.Transactions)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to encode transaction history", "error", err)
		utils.SendJSONError(w, "Failed to encode transaction history", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, txs, http.StatusOK)
}
