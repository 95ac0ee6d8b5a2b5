package services

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/username/smartvest/backend/src/logger"
)

const assistantSystemPrompt = `You are SmartVest's portfolio assistant. You answer questions about
the user's paper-trading portfolio using only the profile summary provided.
Be concise and concrete. You never give personalized financial advice for
real money; when asked, remind the user this is a simulation.`

type assistantServiceImpl struct {
	client *genai.Client
	model  string
}

// NewAssistantService builds the Gemini-backed chat assistant. A missing API
// key disables the assistant; the handler reports it as unavailable rather
// than failing at startup.
func NewAssistantService(ctx context.Context, apiKey, model string) (AssistantService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("assistant API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing Gemini client: %w", err)
	}
	return &assistantServiceImpl{client: client, model: model}, nil
}

// Reply opens a chat seeded with the user's profile summary and session
// history, sends the new message and returns the model's text.
func (s *assistantServiceImpl) Reply(ctx context.Context, profileSummary string, history []AssistantTurn, message string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: assistantSystemPrompt + "\n\n" + profileSummary}}},
	}

	priorTurns := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == "ai" {
			role = genai.RoleModel
		}
		priorTurns = append(priorTurns, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Message}},
		})
	}

	chat, err := s.client.Chats.Create(ctx, s.model, config, priorTurns)
	if err != nil {
		return "", fmt.Errorf("creating chat session: %w", err)
	}

	resp, err := chat.Send(ctx, &genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("sending message to assistant: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from assistant")
	}

	reply := resp.Candidates[0].Content.Parts[0].Text
	logger.L.Debug("Assistant reply generated", "model", s.model, "chars", len(reply))
	return reply, nil
}
