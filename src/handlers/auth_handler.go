package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/username/smartvest/backend/src/database"
	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/model"
	"github.com/username/smartvest/backend/src/security/validation"
	"github.com/username/smartvest/backend/src/utils"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
var passwordRegex = regexp.MustCompile(`^.{6,}$`)

type credentialsPayload struct {
	Username string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authenticatedUser struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Balance      float64 `json:"balance"`
	ProfileImage string  `json:"profile_image,omitempty"`
}

// RegisterUserHandler creates a new account with an empty ledger. New users
// start from a zero balance; their first deposit sets the P&L baseline.
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	credentials.Username = validation.SanitizeText(strings.TrimSpace(credentials.Username))
	credentials.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(credentials.Email)))
	credentials.Password = strings.TrimSpace(credentials.Password)

	if err := validation.ValidateStringNotEmpty(credentials.Username, "Name"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(credentials.Username, validation.MaxUsernameLength, "Name"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !emailRegex.MatchString(credentials.Email) {
		utils.SendJSONError(w, "Invalid email format", http.StatusBadRequest)
		return
	}
	if !passwordRegex.MatchString(credentials.Password) {
		utils.SendJSONError(w, "Password must be at least 6 characters long", http.StatusBadRequest)
		return
	}

	if _, err := model.GetUserByEmail(database.DB, credentials.Email); err == nil {
		utils.SendJSONError(w, "User already exists", http.StatusConflict)
		return
	}
	if _, err := model.GetUserByUsername(database.DB, credentials.Username); err == nil {
		utils.SendJSONError(w, "Username already exists", http.StatusConflict)
		return
	}

	user := &model.User{
		Username: credentials.Username,
		Email:    credentials.Email,
		Balance:  0.0,
	}
	if err := user.HashPassword(credentials.Password); err != nil {
		logger.FromContext(r.Context()).Error("Failed to hash password", "error", err)
		utils.SendJSONError(w, "Failed to register user", http.StatusInternalServerError)
		return
	}
	if err := user.CreateUser(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create user", "error", err)
		utils.SendJSONError(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("User registered", "userID", user.ID, "username", user.Username)
	utils.SendJSON(w, map[string]any{
		"message": "User registered successfully",
		"user": authenticatedUser{
			ID:      user.ID,
			Name:    user.Username,
			Email:   user.Email,
			Balance: user.Balance,
		},
	}, http.StatusCreated)
}

// LoginUserHandler verifies credentials and issues an access token.
func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	credentials.Email = strings.ToLower(strings.TrimSpace(credentials.Email))
	if credentials.Email == "" || credentials.Password == "" {
		utils.SendJSONError(w, "Missing email or password", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByEmail(database.DB, credentials.Email)
	if err != nil {
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := user.CheckPassword(credentials.Password); err != nil {
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	accessToken, err := h.authService.GenerateToken(strconv.FormatInt(user.ID, 10))
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to generate access token", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to log in", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("User logged in", "userID", user.ID)
	utils.SendJSON(w, map[string]any{
		"access_token": accessToken,
		"user": authenticatedUser{
			ID:           user.ID,
			Name:         user.Username,
			Email:        user.Email,
			Balance:      user.Balance,
			ProfileImage: user.ProfileImage,
		},
	}, http.StatusOK)
}
