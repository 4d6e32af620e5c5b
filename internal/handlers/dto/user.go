package dto

import "github.com/google/uuid"

// ContactResponse is one entry of the user directory.
type ContactResponse struct {
	ID              uuid.UUID    `json:"id"`
	Email           string       `json:"email"`
	Name            string       `json:"name"`
	HasConversation bool         `json:"has_conversation"`
	LastMessage     *LastMessage `json:"last_message,omitempty"`
}

type LastMessage struct {
	Preview   string `json:"preview"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}
