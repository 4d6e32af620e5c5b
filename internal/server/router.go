package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/guildchat/internal/config"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/handlers"
	"github.com/thereayou/guildchat/internal/middleware"
	"github.com/thereayou/guildchat/internal/relay"
	"github.com/thereayou/guildchat/internal/services"
	"github.com/thereayou/guildchat/internal/websocket"
	"github.com/thereayou/guildchat/pkg/auth"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router needs that is owned by the process.
type Deps struct {
	Config    *config.Config
	DB        *database.Database
	Tokens    *auth.JWTManager
	Blacklist services.TokenBlacklist
	Hub       *websocket.Hub
	Checks    map[string]HealthCheck
}

// NewRouter wires services, the relay engine and handlers onto a gin engine.
// Path parameters are matched on the raw path and left encoded, so group
// names are percent-decoded exactly once by the handlers.
func NewRouter(d Deps) *gin.Engine {
	resolver := services.NewIdentityResolver(d.Tokens, d.Blacklist, d.DB)
	members := services.NewMembershipService(d.DB, services.MembershipPolicy{
		Exclusive:       d.Config.GroupExclusive,
		DefaultCapacity: d.Config.GroupCapacity,
	})
	engine := relay.NewEngine(resolver, d.DB, members, d.DB, d.Hub)

	authH := handlers.NewAuthHandler(d.DB, d.Tokens, d.Blacklist, d.Config.GinMode == gin.ReleaseMode)
	userH := handlers.NewUserHandler(d.DB)
	guildH := handlers.NewGuildHandler(d.DB, members, d.Hub, engine)
	historyH := handlers.NewHistoryHandler(d.DB, members)
	wsH := handlers.NewWebSocketHandler(engine, websocket.ClientConfig{
		ReadLimit:  d.Config.WSReadLimit,
		PongWait:   d.Config.WSPongWait,
		SendBuffer: d.Config.WSSendBuffer,
	}, d.Config.AllowedOrigins)

	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = false
	r.Use(gin.Recovery(), middleware.RequestLogger())

	r.GET("/healthz", healthz(d.Checks))

	requireAuth := middleware.RequireIdentity(resolver)

	authG := r.Group("/auth")
	{
		authG.POST("/register", authH.Register)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", requireAuth, authH.Logout)
	}

	api := r.Group("/api", requireAuth)
	{
		api.GET("/users/me", userH.GetMe)
		api.GET("/users", userH.ListUsers)

		api.GET("/guilds", guildH.ListGuilds)
		api.POST("/guilds", guildH.CreateGuild)
		api.GET("/guilds/mine", guildH.MyGuilds)
		api.GET("/guilds/:name", guildH.GetGuild)
		api.POST("/guilds/:name/join", guildH.JoinGuild)
		api.POST("/guilds/:name/leave", guildH.LeaveGuild)

		api.GET("/messages/:email", historyH.DirectHistory)
		api.GET("/groups/:name/messages", historyH.GroupHistory)
	}

	// Authentication happens inside the handler so rejections are answered
	// before the upgrade.
	wsG := r.Group("/ws")
	{
		wsG.GET("/personal/:email", wsH.Personal)
		wsG.GET("/group/:name", wsH.Group)
	}

	return r
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": report})
	}
}
