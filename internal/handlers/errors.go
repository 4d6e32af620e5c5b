package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/relay"
	"github.com/thereayou/guildchat/internal/services"
	"github.com/thereayou/guildchat/pkg/roomkey"
)

var errInvalidEmail = errors.New("invalid email")

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, relay.ErrAuthRejected), errors.Is(err, services.ErrAuthRejected):
		return http.StatusUnauthorized
	case errors.Is(err, relay.ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, relay.ErrPeerNotFound),
		errors.Is(err, database.ErrGroupNotFound),
		errors.Is(err, database.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicateName),
		errors.Is(err, database.ErrDuplicateEmail),
		errors.Is(err, database.ErrAlreadyMember),
		errors.Is(err, database.ErrAlreadyInOtherGroup),
		errors.Is(err, database.ErrGroupFull),
		errors.Is(err, database.ErrNotMember):
		return http.StatusConflict
	case errors.Is(err, relay.ErrInvalidHandshake),
		errors.Is(err, services.ErrInvalidGroupName),
		errors.Is(err, roomkey.ErrInvalidGroupName),
		errors.Is(err, database.ErrInvalidCapacity),
		errors.Is(err, errInvalidEmail):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Str("module", "handlers").Str("path", c.FullPath()).Err(err).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
