package model

import (
	"testing"
	"time"
)

func TestListChatSessionsCarriesLastActivity(t *testing.T) {
	db := testDB(t)
	user := createTestUser(t, db, "alice")

	first := time.Now().UTC().Add(-2 * time.Hour)
	second := time.Now().UTC().Add(-time.Hour)
	for _, msg := range []*ChatMessage{
		{UserID: user.ID, SessionID: "s1", SessionName: "Planning", Role: "user", Message: "hello", CreatedAt: first},
		{UserID: user.ID, SessionID: "s1", SessionName: "Planning", Role: "ai", Message: "hi", CreatedAt: second},
		{UserID: user.ID, SessionID: "s2", SessionName: "Taxes", Role: "user", Message: "hmm", CreatedAt: first},
	} {
		if err := InsertChatMessage(db, msg); err != nil {
			t.Fatalf("inserting message: %v", err)
		}
	}

	sessions, err := ListChatSessions(db, user.ID)
	if err != nil {
		t.Fatalf("listing sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	// Newest activity first: s1's second message is the most recent.
	if sessions[0].SessionID != "s1" {
		t.Errorf("first session = %s, want s1", sessions[0].SessionID)
	}
	if sessions[0].MessageCount != 2 || sessions[1].MessageCount != 1 {
		t.Errorf("message counts = %d, %d, want 2, 1", sessions[0].MessageCount, sessions[1].MessageCount)
	}
	for _, s := range sessions {
		if s.LastMessageTime.IsZero() {
			t.Errorf("session %s: last message time missing", s.SessionID)
		}
	}
	if got := sessions[0].LastMessageTime; got.Sub(second) > time.Second || second.Sub(got) > time.Second {
		t.Errorf("s1 last activity = %v, want about %v", got, second)
	}
}

func TestListChatSessionsExcludesStale(t *testing.T) {
	db := testDB(t)
	user := createTestUser(t, db, "alice")

	old := &ChatMessage{
		UserID: user.ID, SessionID: "stale", SessionName: "Old", Role: "user",
		Message: "ancient", CreatedAt: time.Now().UTC().Add(-8 * 24 * time.Hour),
	}
	if err := InsertChatMessage(db, old); err != nil {
		t.Fatal(err)
	}

	sessions, err := ListChatSessions(db, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %d, want 0 (outside the 7-day window)", len(sessions))
	}
}
