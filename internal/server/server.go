// Package server assembles the HTTP server and its dependencies.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/guildchat/internal/config"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/services"
	"github.com/thereayou/guildchat/internal/websocket"
	"github.com/thereayou/guildchat/pkg/auth"
)

type Server struct {
	cfg    *config.Config
	Router *gin.Engine
	DB     *database.Database
	Redis  *redis.Client
	Hub    *websocket.Hub
}

// New connects to Postgres (migrating the schema) and Redis and builds the
// router.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		rdb.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	hub := websocket.NewHub()
	router := NewRouter(Deps{
		Config:    cfg,
		DB:        db,
		Tokens:    auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		Blacklist: services.NewRedisBlacklist(rdb),
		Hub:       hub,
		Checks: map[string]HealthCheck{
			"postgres": db.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	return &Server{cfg: cfg, Router: router, DB: db, Redis: rdb, Hub: hub}, nil
}

// Run serves until ctx is cancelled, then drains connections and closes the
// stores.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.Router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("module", "server").Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "server").Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		s.Hub.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.close()
	return err
}

func (s *Server) close() {
	if err := s.Redis.Close(); err != nil {
		log.Warn().Str("module", "server").Err(err).Msg("redis close")
	}
	if err := s.DB.Close(); err != nil {
		log.Warn().Str("module", "server").Err(err).Msg("postgres close")
	}
}
