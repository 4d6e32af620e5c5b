package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/guildchat/internal/models"
)

// UserStore is the part of the database the identity resolver reads.
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// GroupStore is the transactional membership storage.
type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.Group, exclusive bool) error
	JoinGroup(ctx context.Context, name string, userID uuid.UUID, exclusive bool) error
	LeaveGroup(ctx context.Context, name string, userID uuid.UUID) (bool, error)
	GetGroup(ctx context.Context, name string) (*models.Group, error)
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// TokenBlacklist records tokens revoked before they expire.
type TokenBlacklist interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}
