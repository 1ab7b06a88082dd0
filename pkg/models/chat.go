package models

// Chat message roles.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a user message plus optional prior turns.
type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history,omitempty"`
}

// ChatResponse is the assistant reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}
