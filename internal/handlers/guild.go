package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/middleware"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/services"
	"github.com/thereayou/guildchat/pkg/roomkey"
)

type GuildDirectory interface {
	ListGroups(ctx context.Context) ([]models.GroupSummary, error)
	UserGroups(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	GetGroupWithMembers(ctx context.Context, name string) (*models.Group, error)
	CountMembers(ctx context.Context, groupID uuid.UUID) (int64, error)
}

// Presence reports who is connected to a room right now.
type Presence interface {
	RoomUsers(roomKey string) []uuid.UUID
}

// Revoker drops a user's live connections to a group room.
type Revoker interface {
	RevokeGroup(groupName string, userID uuid.UUID) int
}

type GuildHandler struct {
	guilds   GuildDirectory
	members  *services.MembershipService
	presence Presence
	revoker  Revoker
}

func NewGuildHandler(guilds GuildDirectory, members *services.MembershipService, presence Presence, revoker Revoker) *GuildHandler {
	return &GuildHandler{guilds: guilds, members: members, presence: presence, revoker: revoker}
}

func (h *GuildHandler) ListGuilds(c *gin.Context) {
	groups, err := h.guilds.ListGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.GuildResponse, len(groups))
	for i, g := range groups {
		out[i] = guildResponse(&g.Group, g.MemberCount)
	}
	c.JSON(http.StatusOK, gin.H{"guilds": out})
}

// CreateGuild creates a guild with the caller as its first member.
func (h *GuildHandler) CreateGuild(c *gin.Context) {
	me := middleware.CurrentIdentity(c)

	var req dto.CreateGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.members.CreateGroup(c.Request.Context(), req.Name, req.Description, me.ID, req.Capacity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, guildResponse(group, 1))
}

func (h *GuildHandler) MyGuilds(c *gin.Context) {
	me := middleware.CurrentIdentity(c)
	ctx := c.Request.Context()

	groups, err := h.guilds.UserGroups(ctx, me.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.GuildResponse, len(groups))
	for i := range groups {
		count, err := h.guilds.CountMembers(ctx, groups[i].ID)
		if err != nil {
			respondError(c, err)
			return
		}
		out[i] = guildResponse(&groups[i], count)
	}
	c.JSON(http.StatusOK, gin.H{"guilds": out})
}

// GetGuild returns the guild with its members and who is online.
func (h *GuildHandler) GetGuild(c *gin.Context) {
	me := middleware.CurrentIdentity(c)

	name, err := groupParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	group, err := h.guilds.GetGroupWithMembers(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}

	online := make(map[uuid.UUID]bool)
	for _, id := range h.presence.RoomUsers(roomkey.Group(group.Name).String()) {
		online[id] = true
	}

	resp := dto.GuildDetailResponse{
		GuildResponse: guildResponse(group, int64(len(group.Members))),
		Members:       make([]dto.MemberResponse, len(group.Members)),
	}
	for i, m := range group.Members {
		resp.Members[i] = dto.MemberResponse{
			ID:        m.UserID,
			Email:     m.User.Email,
			Name:      m.User.Name,
			JoinedAt:  m.JoinedAt,
			IsOnline:  online[m.UserID],
			IsCreator: m.UserID == group.CreatedBy,
		}
		if online[m.UserID] {
			resp.OnlineCount++
		}
		if m.UserID == me.ID {
			resp.IsMember = true
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GuildHandler) JoinGuild(c *gin.Context) {
	me := middleware.CurrentIdentity(c)

	name, err := groupParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.members.Join(c.Request.Context(), name, me.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true, "guild": name})
}

// LeaveGuild removes the caller and closes their open sockets in the guild.
func (h *GuildHandler) LeaveGuild(c *gin.Context) {
	me := middleware.CurrentIdentity(c)

	name, err := groupParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	deleted, err := h.members.Leave(c.Request.Context(), name, me.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LeaveGuildResponse{
		Left:         true,
		GuildDeleted: deleted,
		Disconnected: h.revoker.RevokeGroup(name, me.ID),
	})
}

func guildResponse(g *models.Group, members int64) dto.GuildResponse {
	return dto.GuildResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Capacity:    g.Capacity,
		MemberCount: members,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   g.CreatedAt,
	}
}
