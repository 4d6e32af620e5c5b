package dto

import "github.com/google/uuid"

// MessageResponse mirrors the live outbound frame plus the stored id.
type MessageResponse struct {
	ID         uint      `json:"id"`
	Message    string    `json:"message"`
	SenderID   uuid.UUID `json:"sender_id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name"`
	Timestamp  string    `json:"timestamp"`
}

type HistoryResponse struct {
	Room     string            `json:"room"`
	Messages []MessageResponse `json:"messages"`
}
