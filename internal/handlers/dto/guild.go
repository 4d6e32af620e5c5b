package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateGuildRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Capacity    int    `json:"capacity" binding:"min=0"`
}

type GuildResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity"`
	MemberCount int64     `json:"member_count"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type MemberResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joined_at"`
	IsOnline  bool      `json:"is_online"`
	IsCreator bool      `json:"is_creator"`
}

type GuildDetailResponse struct {
	GuildResponse
	Members     []MemberResponse `json:"members"`
	OnlineCount int              `json:"online_count"`
	IsMember    bool             `json:"is_member"`
}

type LeaveGuildResponse struct {
	Left         bool `json:"left"`
	GuildDeleted bool `json:"guild_deleted"`
	Disconnected int  `json:"disconnected"`
}
