package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/username/smartvest/backend/src/database"
	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/model"
	"github.com/username/smartvest/backend/src/portfolio"
	"github.com/username/smartvest/backend/src/security/validation"
	"github.com/username/smartvest/backend/src/services"
	"github.com/username/smartvest/backend/src/utils"
)

// ChatHandler runs the assistant conversations. The assistant only ever sees
// the rendered profile summary; all accounting stays in the portfolio
// package.
type ChatHandler struct {
	assistant services.AssistantService
	store     *model.LedgerStore
	quotes    services.QuoteService
}

// NewChatHandler accepts a nil assistant; messages are then persisted
// without AI replies.
func NewChatHandler(assistant services.AssistantService, store *model.LedgerStore, quotes services.QuoteService) *ChatHandler {
	return &ChatHandler{
		assistant: assistant,
		store:     store,
		quotes:    quotes,
	}
}

// SendMessageHandler persists the user's message and, when the assistant is
// configured, generates and persists the AI reply in the same session.
func (h *ChatHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Message     string `json:"message"`
		SessionID   string `json:"session_id"`
		SessionName string `json:"session_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payload.Message = validation.StripUnprintable(validation.SanitizeText(payload.Message))
	if err := validation.ValidateStringNotEmpty(payload.Message, "Message"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(payload.Message, validation.MaxChatMessageLength, "Message"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.SessionID == "" {
		payload.SessionID = uuid.New().String()
	}
	payload.SessionName = validation.SanitizeText(strings.TrimSpace(payload.SessionName))
	if payload.SessionName == "" {
		payload.SessionName = "Untitled"
	}
	if err := validation.ValidateStringMaxLength(payload.SessionName, validation.MaxSessionNameLength, "Session name"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	history, err := model.GetChatHistory(database.DB, userID, payload.SessionID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load chat history", "error", err)
		utils.SendJSONError(w, "Failed to load chat history", http.StatusInternalServerError)
		return
	}

	userMsg := &model.ChatMessage{
		UserID:      userID,
		SessionID:   payload.SessionID,
		SessionName: payload.SessionName,
		Role:        "user",
		Message:     payload.Message,
	}
	if err := model.InsertChatMessage(database.DB, userMsg); err != nil {
		logger.FromContext(r.Context()).Error("Failed to save chat message", "error", err)
		utils.SendJSONError(w, "Failed to save message", http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"message":      "Message saved",
		"session_id":   payload.SessionID,
		"session_name": payload.SessionName,
	}

	if h.assistant != nil {
		reply, err := h.replyWithContext(r, userID, history, payload.Message)
		if err != nil {
			logger.FromContext(r.Context()).Warn("Assistant reply failed", "error", err)
			response["assistant_error"] = "The assistant is temporarily unavailable."
		} else {
			aiMsg := &model.ChatMessage{
				UserID:      userID,
				SessionID:   payload.SessionID,
				SessionName: payload.SessionName,
				Role:        "ai",
				Message:     reply,
			}
			if err := model.InsertChatMessage(database.DB, aiMsg); err != nil {
				logger.FromContext(r.Context()).Error("Failed to save assistant reply", "error", err)
			}
			response["reply"] = reply
		}
	}

	utils.SendJSON(w, response, http.StatusOK)
}

// replyWithContext values the user's current ledger, renders it as text and
// asks the assistant. The valuation here is read-only; no dust sweep runs.
func (h *ChatHandler) replyWithContext(r *http.Request, userID int64, history []model.ChatMessage, message string) (string, error) {
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		return "", err
	}
	ledger, err := h.store.Find(userID)
	if err != nil {
		return "", err
	}

	report := portfolio.Valuate(r.Context(), ledger, h.quotes)
	summary := portfolio.Summarize(user.Username, report, ledger.Transactions)

	turns := make([]services.AssistantTurn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, services.AssistantTurn{Role: msg.Role, Message: msg.Message})
	}
	return h.assistant.Reply(r.Context(), summary, turns, message)
}

// SessionsHandler lists the user's recent chat sessions.
func (h *ChatHandler) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	sessions, err := model.ListChatSessions(database.DB, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list chat sessions", "error", err)
		utils.SendJSONError(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []model.ChatSession{}
	}
	utils.SendJSON(w, map[string]any{"sessions": sessions}, http.StatusOK)
}

// HistoryHandler returns the user's recent messages, optionally scoped to
// one session via the session_id query parameter.
func (h *ChatHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	messages, err := model.GetChatHistory(database.DB, userID, r.URL.Query().Get("session_id"))
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load chat history", "error", err)
		utils.SendJSONError(w, "Failed to load chat history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	utils.SendJSON(w, map[string]any{"messages": messages}, http.StatusOK)
}

// DeleteSessionHandler removes one of the user's chat sessions.
func (h *ChatHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	deleted, err := model.DeleteChatSession(database.DB, userID, sessionID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to delete chat session", "sessionID", sessionID, "error", err)
		utils.SendJSONError(w, "An internal server error occurred", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		utils.SendJSONError(w, "No session found to delete.", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, map[string]any{"message": "Session deleted", "messages_removed": deleted}, http.StatusOK)
}
