package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/guildchat/internal/relay"
	ws "github.com/thereayou/guildchat/internal/websocket"
	"github.com/thereayou/guildchat/pkg/auth"
)

// WebSocketHandler authenticates and authorizes a connection before the
// upgrade, then hands the socket to the relay engine.
type WebSocketHandler struct {
	engine    *relay.Engine
	upgrader  websocket.Upgrader
	clientCfg ws.ClientConfig
}

func NewWebSocketHandler(engine *relay.Engine, clientCfg ws.ClientConfig, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		engine:    engine,
		clientCfg: clientCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Personal serves /ws/personal/:email.
func (h *WebSocketHandler) Personal(c *gin.Context) {
	email, err := emailParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	h.serve(c, relay.Handshake{Peer: email})
}

// Group serves /ws/group/:name. The name stays percent-encoded until the
// engine decodes it.
func (h *WebSocketHandler) Group(c *gin.Context) {
	h.serve(c, relay.Handshake{Group: escapedParam(c, "name")})
}

func (h *WebSocketHandler) serve(c *gin.Context, hs relay.Handshake) {
	hs.Credential, _ = auth.ExtractToken(c.Request)

	session, err := h.engine.Open(c.Request.Context(), hs)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "handlers.websocket").Str("user", session.Identity.Email).Err(err).Msg("upgrade failed")
		return
	}

	client := ws.NewClient(conn, session.Identity.ID, h.clientCfg)
	if err := h.engine.Attach(c.Request.Context(), session, client); err != nil {
		log.Info().Str("module", "handlers.websocket").Str("user", session.Identity.Email).Err(err).Msg("attach failed")
		client.Close()
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(&sessionFrames{engine: h.engine, session: session})
}

// sessionFrames feeds a client's frames into its relay session.
type sessionFrames struct {
	engine  *relay.Engine
	session *relay.Session
}

// HandleFrame only logs errors: the engine has already reported them and
// closes the session itself when the user is no longer a member.
func (f *sessionFrames) HandleFrame(client *ws.Client, raw []byte) {
	if err := f.engine.Receive(context.Background(), f.session, raw); err != nil {
		log.Debug().Str("module", "handlers.websocket").Str("conn", client.ID().String()).Err(err).Msg("frame not relayed")
	}
}

func (f *sessionFrames) HandleClose(*ws.Client) {
	f.engine.Close(f.session)
}

// originChecker accepts any origin when the list is empty. Otherwise the
// scheme and host of the Origin header must match an entry; "*" matches all.
func originChecker(allowed []string) func(r *http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	allowAll := len(allowed) == 0
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			origins[n] = struct{}{}
		} else if o != "" {
			log.Warn().Str("module", "handlers.websocket").Str("origin", o).Msg("ignoring invalid origin")
		}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin, ok := normalizeOrigin(r.Header.Get("Origin"))
		if ok {
			if _, found := origins[origin]; found {
				return true
			}
		}
		log.Warn().Str("module", "handlers.websocket").Str("origin", r.Header.Get("Origin")).Msg("blocked websocket origin")
		return false
	}
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
