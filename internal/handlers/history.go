package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/middleware"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/relay"
	"github.com/thereayou/guildchat/internal/services"
	"github.com/thereayou/guildchat/internal/websocket"
	"github.com/thereayou/guildchat/pkg/roomkey"
)

type MessageHistory interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	PairMessages(ctx context.Context, a, b string) ([]models.Message, error)
	GroupMessages(ctx context.Context, groupID uuid.UUID) ([]models.Message, error)
}

type HistoryHandler struct {
	messages MessageHistory
	members  *services.MembershipService
}

func NewHistoryHandler(messages MessageHistory, members *services.MembershipService) *HistoryHandler {
	return &HistoryHandler{messages: messages, members: members}
}

// DirectHistory returns the conversation between the caller and :email.
func (h *HistoryHandler) DirectHistory(c *gin.Context) {
	me := middleware.CurrentIdentity(c)
	ctx := c.Request.Context()

	email, err := emailParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	peer, err := h.messages.FindUserByEmail(ctx, email)
	if err != nil {
		respondError(c, err)
		return
	}

	messages, err := h.messages.PairMessages(ctx, me.Email, peer.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.HistoryResponse{
		Room:     roomkey.Pair(me.Email, peer.Email).String(),
		Messages: messageResponses(messages),
	})
}

// GroupHistory returns the messages of :name. Only members may read them.
func (h *HistoryHandler) GroupHistory(c *gin.Context) {
	me := middleware.CurrentIdentity(c)
	ctx := c.Request.Context()

	name, err := groupParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	group, err := h.members.Group(ctx, name)
	if err != nil {
		respondError(c, err)
		return
	}
	ok, err := h.members.IsMember(ctx, name, me.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, relay.ErrNotAMember)
		return
	}

	messages, err := h.messages.GroupMessages(ctx, group.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.HistoryResponse{
		Room:     roomkey.Group(group.Name).String(),
		Messages: messageResponses(messages),
	})
}

func messageResponses(messages []models.Message) []dto.MessageResponse {
	out := make([]dto.MessageResponse, len(messages))
	for i, m := range messages {
		out[i] = dto.MessageResponse{
			ID:         m.ID,
			Message:    m.Body,
			SenderID:   m.SenderID,
			Sender:     m.Sender.Email,
			SenderName: m.Sender.Name,
			Timestamp:  websocket.FormatTimestamp(m.CreatedAt),
		}
	}
	return out
}
