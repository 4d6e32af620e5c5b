package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/middleware"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/websocket"
)

const previewLength = 50

type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListActiveUsers(ctx context.Context, exclude uuid.UUID) ([]models.User, error)
	LastPairMessage(ctx context.Context, a, b string) (*models.Message, error)
}

type UserHandler struct {
	users Directory
}

func NewUserHandler(users Directory) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	me := middleware.CurrentIdentity(c)

	user, err := h.users.GetUser(c.Request.Context(), me.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// ListUsers returns everyone the caller can message. People the caller has
// talked to come first, the rest follow by name.
func (h *UserHandler) ListUsers(c *gin.Context) {
	me := middleware.CurrentIdentity(c)
	ctx := c.Request.Context()

	users, err := h.users.ListActiveUsers(ctx, me.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	contacts := make([]dto.ContactResponse, 0, len(users))
	for _, u := range users {
		contact := dto.ContactResponse{ID: u.ID, Email: u.Email, Name: u.Name}

		last, err := h.users.LastPairMessage(ctx, me.Email, u.Email)
		if err != nil {
			respondError(c, err)
			return
		}
		if last != nil {
			contact.HasConversation = true
			sender := u.Email
			if last.SenderID == me.ID {
				sender = me.Email
			}
			contact.LastMessage = &dto.LastMessage{
				Preview:   preview(last.Body),
				Sender:    sender,
				Timestamp: websocket.FormatTimestamp(last.CreatedAt),
			}
		}
		contacts = append(contacts, contact)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		if contacts[i].HasConversation != contacts[j].HasConversation {
			return contacts[i].HasConversation
		}
		return strings.ToLower(contacts[i].Name) < strings.ToLower(contacts[j].Name)
	})

	c.JSON(http.StatusOK, gin.H{"users": contacts})
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewLength {
		return body
	}
	return string(runes[:previewLength]) + "..."
}
