package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/smartvest/backend/src/database"
	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/model"
	"github.com/username/smartvest/backend/src/models"
	"github.com/username/smartvest/backend/src/portfolio"
	"github.com/username/smartvest/backend/src/security"
	"github.com/username/smartvest/backend/src/services"
	"github.com/username/smartvest/backend/src/utils"
)

type UserHandler struct {
	authService *security.AuthService
	store       *model.LedgerStore
	quotes      services.QuoteService
}

func NewUserHandler(authService *security.AuthService, store *model.LedgerStore, quotes services.QuoteService) *UserHandler {
	return &UserHandler{
		authService: authService,
		store:       store,
		quotes:      quotes,
	}
}

// profileResponse is the payload for both the private and the public profile
// views: identity fields plus the full valuation report.
type profileResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profile_image,omitempty"`
	IsPublic     bool   `json:"is_public"`
	models.ValuationReport
	Transactions []json.RawMessage `json:"transactions"`
}

func (h *UserHandler) buildProfile(r *http.Request, user *model.User, ledger *portfolio.Ledger) (profileResponse, error) {
	report := portfolio.Valuate(r.Context(), ledger, h.quotes)
	txs, err := models.MarshalTransactions(ledger.Transactions)
	if err != nil {
		return profileResponse{}, err
	}
	return profileResponse{
		ID:              user.ID,
		Name:            user.Username,
		Email:           user.Email,
		ProfileImage:    user.ProfileImage,
		IsPublic:        user.IsPublic,
		ValuationReport: report,
		Transactions:    txs,
	}, nil
}

// ProfileHandler returns the authenticated user's profile with live
// valuation. Dust positions are liquidated first, so the returned portfolio
// never carries holdings worth less than the dust threshold.
func (h *UserHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	// The sweep is a read-modify-write cycle like any trade, so it goes
	// through the store's versioned Update. When nothing is swept the cycle
	// records no transactions and nothing is written.
	ledger, err := h.store.Update(userID, func(l *portfolio.Ledger) error {
		// Warm the quote cache once; the sweep and the valuation below both
		// consult it.
		symbols := make([]string, 0, len(l.Positions))
		for symbol := range l.Positions {
			symbols = append(symbols, symbol)
		}
		h.quotes.Prefetch(r.Context(), symbols)

		portfolio.SweepDust(r.Context(), l, h.quotes)
		return nil
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load ledger for profile", "error", err)
		utils.SendJSONError(w, "Failed to load portfolio", http.StatusInternalServerError)
		return
	}

	profile, err := h.buildProfile(r, user, ledger)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build profile", "error", err)
		utils.SendJSONError(w, "Failed to build profile", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, profile, http.StatusOK)
}

// UpdatePrivacyHandler flips the flag that exposes a profile publicly and on
// the leaderboard.
func (h *UserHandler) UpdatePrivacyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		IsPublic *bool `json:"is_public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.IsPublic == nil {
		utils.SendJSONError(w, "Missing 'is_public' field", http.StatusBadRequest)
		return
	}

	if err := model.SetUserPrivacy(database.DB, userID, *payload.IsPublic); err != nil {
		if model.IsNotFound(err) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to update privacy setting", "error", err)
		utils.SendJSONError(w, "Failed to update privacy setting", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]any{
		"message":   "Privacy setting updated successfully",
		"is_public": *payload.IsPublic,
	}, http.StatusOK)
}

// PublicProfileHandler serves another user's profile, by username. Private
// profiles are refused outright; no valuation is computed for them. The
// public view is read-only: it never sweeps dust or mutates the ledger.
func (h *UserHandler) PublicProfileHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := model.GetUserByUsername(database.DB, username)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if !user.IsPublic {
		utils.SendJSONError(w, "This user's profile is private.", http.StatusForbidden)
		return
	}

	ledger, err := h.store.Find(user.ID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load ledger for public profile", "username", username, "error", err)
		utils.SendJSONError(w, "Failed to load portfolio", http.StatusInternalServerError)
		return
	}

	profile, err := h.buildProfile(r, user, ledger)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build public profile", "error", err)
		utils.SendJSONError(w, "Failed to build profile", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, profile, http.StatusOK)
}

// TopUsersHandler ranks all public users by performance. Supports
// sortBy=overall_pl|overall_pl_percentage and a limit query parameter.
func (h *UserHandler) TopUsersHandler(w http.ResponseWriter, r *http.Request) {
	limit := portfolio.DefaultLeaderboardLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	sortBy := r.URL.Query().Get("sortBy")

	users, err := model.ListPublicUsers(database.DB)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list public users", "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	entries := make([]portfolio.RankedLedger, 0, len(users))
	for _, user := range users {
		ledger, err := h.store.Find(user.ID)
		if err != nil {
			if errors.Is(err, portfolio.ErrUserNotFound) {
				continue
			}
			logger.FromContext(r.Context()).Error("Failed to load ledger for leaderboard", "userID", user.ID, "error", err)
			utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
			return
		}
		entries = append(entries, portfolio.RankedLedger{
			UserID:       user.ID,
			Username:     user.Username,
			ProfileImage: user.ProfileImage,
			Public:       user.IsPublic,
			Ledger:       ledger,
		})
	}

	ranked := portfolio.Rank(r.Context(), entries, h.quotes, sortBy, limit)
	utils.SendJSON(w, ranked, http.StatusOK)
}
