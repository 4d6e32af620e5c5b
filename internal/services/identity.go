package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/pkg/auth"
)

// IdentityResolver turns an opaque access token into the user behind it.
type IdentityResolver struct {
	tokens    *auth.JWTManager
	blacklist TokenBlacklist
	users     UserStore
}

func NewIdentityResolver(tokens *auth.JWTManager, blacklist TokenBlacklist, users UserStore) *IdentityResolver {
	return &IdentityResolver{tokens: tokens, blacklist: blacklist, users: users}
}

// Resolve fails closed: any problem, including an unreachable blacklist,
// yields ErrAuthRejected and no identity.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, r.reject("verify", err)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, r.reject("subject", err)
	}

	revoked, err := r.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return nil, r.reject("blacklist", err)
	}
	if revoked {
		return nil, r.reject("revoked", nil)
	}

	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, r.reject("lookup", err)
	}
	if !user.IsActive {
		return nil, r.reject("inactive", nil)
	}

	id := user.Identity()
	return &id, nil
}

func (r *IdentityResolver) reject(stage string, err error) error {
	log.Debug().Str("module", "services.identity").Str("stage", stage).Err(err).Msg("credential rejected")
	return ErrAuthRejected
}
