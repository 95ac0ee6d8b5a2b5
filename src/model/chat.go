package model

import (
	"database/sql"
	"fmt"
	"time"
)

// ChatMessage is one turn of an assistant conversation, grouped into
// sessions by SessionID.
type ChatMessage struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	SessionID   string    `json:"session_id"`
	SessionName string    `json:"session_name"`
	Role        string    `json:"role"` // "user" or "ai"
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"timestamp"`
}

// ChatSession summarizes one conversation for the session list.
type ChatSession struct {
	SessionID       string    `json:"session_id"`
	SessionName     string    `json:"session_name"`
	LastMessageTime time.Time `json:"last_message_time"`
	MessageCount    int       `json:"message_count"`
}

// chatHistoryWindow bounds session listing and history to recent
// conversations.
const chatHistoryWindow = 7 * 24 * time.Hour

func InsertChatMessage(db *sql.DB, msg *ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(
		`INSERT INTO chat_messages (user_id, session_id, session_name, role, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.UserID, msg.SessionID, msg.SessionName, msg.Role, msg.Message, msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	msg.ID, err = res.LastInsertId()
	return err
}

// storedTimeLayouts are the text shapes timestamps come back in when a query
// loses the column's declared type (aggregates like MAX strip it, so the
// driver hands over the raw stored text instead of a time.Time).
var storedTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ListChatSessions groups a user's messages of the last week by session,
// newest activity first.
func ListChatSessions(db *sql.DB, userID int64) ([]ChatSession, error) {
	cutoff := time.Now().UTC().Add(-chatHistoryWindow)
	rows, err := db.Query(`
		SELECT session_id, MAX(session_name), MAX(created_at) AS last_message_time, COUNT(*)
		FROM chat_messages
		WHERE user_id = ? AND created_at >= ?
		GROUP BY session_id
		ORDER BY last_message_time DESC`,
		userID, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ChatSession
	for rows.Next() {
		var s ChatSession
		var lastMessage string
		if err := rows.Scan(&s.SessionID, &s.SessionName, &lastMessage, &s.MessageCount); err != nil {
			return nil, err
		}
		if s.LastMessageTime, err = parseStoredTime(lastMessage); err != nil {
			return nil, fmt.Errorf("decoding session %s activity time: %w", s.SessionID, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetChatHistory returns a user's recent messages in chronological order,
// optionally filtered to one session.
func GetChatHistory(db *sql.DB, userID int64, sessionID string) ([]ChatMessage, error) {
	cutoff := time.Now().UTC().Add(-chatHistoryWindow)
	query := `
		SELECT id, user_id, session_id, session_name, role, message, created_at
		FROM chat_messages
		WHERE user_id = ? AND created_at >= ?`
	args := []any{userID, cutoff}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.SessionName, &m.Role, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteChatSession removes one session's messages for a user and reports
// how many rows went away. Scoped by user so nobody can delete someone
// else's conversation.
func DeleteChatSession(db *sql.DB, userID int64, sessionID string) (int64, error) {
	res, err := db.Exec(`DELETE FROM chat_messages WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
