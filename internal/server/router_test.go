package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/guildchat/internal/config"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/database/dbtest"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/server"
	"github.com/thereayou/guildchat/internal/websocket"
	"github.com/thereayou/guildchat/pkg/auth"
	"github.com/thereayou/guildchat/pkg/roomkey"
)

type memoryBlacklist struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func (b *memoryBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens[token], nil
}

func (b *memoryBlacklist) Revoke(_ context.Context, token string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = true
	return nil
}

type testEnv struct {
	srv    *httptest.Server
	db     *database.Database
	hub    *websocket.Hub
	tokens *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		GinMode:        gin.TestMode,
		TokenTTL:       time.Hour,
		GroupCapacity:  2,
		GroupExclusive: true,
		WSReadLimit:    4096,
		WSPongWait:     time.Minute,
		WSSendBuffer:   16,
	}

	env := &testEnv{
		db:     dbtest.Open(t),
		hub:    websocket.NewHub(),
		tokens: auth.NewJWTManager("test-secret", cfg.TokenTTL),
	}
	router := server.NewRouter(server.Deps{
		Config:    cfg,
		DB:        env.db,
		Tokens:    env.tokens,
		Blacklist: &memoryBlacklist{tokens: map[string]bool{}},
		Hub:       env.hub,
		Checks: map[string]server.HealthCheck{
			"postgres": env.db.Ping,
		},
	})
	env.srv = httptest.NewServer(router)
	t.Cleanup(func() {
		env.hub.Shutdown()
		env.srv.Close()
	})
	return env
}

func (e *testEnv) user(t *testing.T, email, name string) (*models.User, string) {
	t.Helper()
	u := dbtest.CreateUser(t, e.db, email, name)
	token, err := e.tokens.Generate(u.ID, u.Email)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *testEnv) dial(t *testing.T, path, token string) (*gorilla.Conn, *http.Response, error) {
	t.Helper()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	conn, resp, err := gorilla.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func (e *testEnv) waitSubscribers(t *testing.T, key roomkey.Key, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return e.hub.RoomSize(key.String()) == n },
		2*time.Second, 10*time.Millisecond)
}

func readFrame(t *testing.T, conn *gorilla.Conn) websocket.OutboundFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var frame websocket.OutboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"OK","checks":{"postgres":"ok"}}`, string(body))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	register := map[string]string{"email": "a@x.io", "name": "Alice", "password": "correct-horse"}
	status, _ := env.do(t, http.MethodPost, "/auth/register", "", register)
	require.Equal(t, http.StatusCreated, status)

	status, _ = env.do(t, http.MethodPost, "/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.io", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.io", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, status)

	var login struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &login))
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "Alice", login.User.Name)

	status, body = env.do(t, http.MethodGet, "/api/users/me", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"email":"a@x.io"`)

	status, _ = env.do(t, http.MethodPost, "/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = env.do(t, http.MethodGet, "/api/users/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDirectMessageOverWebSocket(t *testing.T) {
	env := newTestEnv(t)
	_, tokA := env.user(t, "a@x", "Alice")
	_, tokB := env.user(t, "b@x", "Bob")
	_, tokC := env.user(t, "c@x", "Carol")

	connA, _, err := env.dial(t, "/ws/personal/b@x", tokA)
	require.NoError(t, err)
	connB, _, err := env.dial(t, "/ws/personal/a@x", tokB)
	require.NoError(t, err)
	env.waitSubscribers(t, roomkey.Pair("a@x", "b@x"), 2)

	require.NoError(t, connA.WriteJSON(map[string]string{"message": "hi", "timestamp": "2000-01-01T00:00:00Z"}))

	got := readFrame(t, connB)
	assert.Equal(t, "hi", got.Message)
	assert.Equal(t, "a@x", got.Sender)
	assert.Equal(t, "Alice", got.SenderName)
	assert.NotEqual(t, "2000-01-01T00:00:00Z", got.Timestamp)

	echo := readFrame(t, connA)
	assert.Equal(t, got, echo)

	status, body := env.do(t, http.MethodGet, "/api/messages/b@x", tokA, nil)
	require.Equal(t, http.StatusOK, status)
	var history struct {
		Messages []struct {
			Message   string `json:"message"`
			Sender    string `json:"sender"`
			Timestamp string `json:"timestamp"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hi", history.Messages[0].Message)
	assert.Equal(t, got.Timestamp, history.Messages[0].Timestamp)

	status, body = env.do(t, http.MethodGet, "/api/users", tokB, nil)
	require.Equal(t, http.StatusOK, status)
	var users struct {
		Users []struct {
			Email           string `json:"email"`
			HasConversation bool   `json:"has_conversation"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(body, &users))
	require.Len(t, users.Users, 2)
	assert.Equal(t, "a@x", users.Users[0].Email)
	assert.True(t, users.Users[0].HasConversation)
	assert.False(t, users.Users[1].HasConversation)

	status, body = env.do(t, http.MethodGet, "/api/messages/a@x", tokC, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"messages":[]`)
}

func TestWebSocketRejectedBeforeUpgrade(t *testing.T) {
	env := newTestEnv(t)
	_, tokA := env.user(t, "a@x", "Alice")
	_, tokB := env.user(t, "b@x", "Bob")

	status, _ := env.do(t, http.MethodPost, "/api/guilds", tokA, map[string]any{"name": "Guild"})
	require.Equal(t, http.StatusCreated, status)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"no token", "/ws/personal/b@x", "", http.StatusUnauthorized},
		{"forged token", "/ws/personal/b@x", "not-a-jwt", http.StatusUnauthorized},
		{"unknown peer", "/ws/personal/nobody@x", tokA, http.StatusNotFound},
		{"unknown group", "/ws/group/Nope", tokA, http.StatusNotFound},
		{"not a member", "/ws/group/Guild", tokB, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := env.dial(t, tt.path, tt.token)
			require.ErrorIs(t, err, gorilla.ErrBadHandshake)
			assert.Nil(t, conn)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.Zero(t, env.hub.RoomSize(roomkey.Group("Guild").String()))
}

func TestGuildLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, tokA := env.user(t, "a@x", "Alice")
	_, tokB := env.user(t, "b@x", "Bob")
	_, tokC := env.user(t, "c@x", "Carol")

	status, _ := env.do(t, http.MethodPost, "/api/guilds", tokA, map[string]any{"name": "Night Owls", "description": "late"})
	require.Equal(t, http.StatusCreated, status)

	status, body := env.do(t, http.MethodGet, "/api/guilds/mine", tokA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"name":"Night Owls"`)

	status, _ = env.do(t, http.MethodPost, "/api/guilds", tokB, map[string]any{"name": "Night Owls"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodPost, "/api/guilds/Night%20Owls/join", tokB, nil)
	require.Equal(t, http.StatusOK, status)
	status, body = env.do(t, http.MethodPost, "/api/guilds/Night%20Owls/join", tokC, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), database.ErrGroupFull.Error())

	status, _ = env.do(t, http.MethodGet, "/api/groups/Night%20Owls/messages", tokC, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodGet, "/api/groups/night%20owls/messages", tokA, nil)
	assert.Equal(t, http.StatusNotFound, status)

	key := roomkey.Group("Night Owls")
	connA, _, err := env.dial(t, "/ws/group/Night%20Owls", tokA)
	require.NoError(t, err)
	connB, _, err := env.dial(t, "/ws/group/Night%20Owls", tokB)
	require.NoError(t, err)
	env.waitSubscribers(t, key, 2)

	status, body = env.do(t, http.MethodGet, "/api/guilds/Night%20Owls", tokC, nil)
	require.Equal(t, http.StatusOK, status)
	var detail struct {
		MemberCount int64 `json:"member_count"`
		OnlineCount int   `json:"online_count"`
		IsMember    bool  `json:"is_member"`
		Members     []struct {
			Email     string `json:"email"`
			IsCreator bool   `json:"is_creator"`
		} `json:"members"`
	}
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, int64(2), detail.MemberCount)
	assert.Equal(t, 2, detail.OnlineCount)
	assert.False(t, detail.IsMember)
	require.Len(t, detail.Members, 2)
	assert.Equal(t, "a@x", detail.Members[0].Email)
	assert.True(t, detail.Members[0].IsCreator)

	require.NoError(t, connA.WriteJSON(map[string]string{"message": "who's up?"}))
	assert.Equal(t, "who's up?", readFrame(t, connB).Message)
	assert.Equal(t, "who's up?", readFrame(t, connA).Message)

	status, body = env.do(t, http.MethodPost, "/api/guilds/Night%20Owls/leave", tokB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"left":true,"guild_deleted":false,"disconnected":1}`, string(body))

	require.NoError(t, connB.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = connB.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseNormalClosure), "got %v", err)
	env.waitSubscribers(t, key, 1)

	status, body = env.do(t, http.MethodGet, "/api/groups/Night%20Owls/messages", tokA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"sender_name":"Alice"`)

	status, body = env.do(t, http.MethodPost, "/api/guilds/Night%20Owls/leave", tokA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"left":true,"guild_deleted":true,"disconnected":1}`, string(body))

	status, _ = env.do(t, http.MethodGet, "/api/guilds/Night%20Owls", tokA, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGuildNamesWithReservedCharacters(t *testing.T) {
	env := newTestEnv(t)
	_, tokA := env.user(t, "a@x", "Alice")

	status, _ := env.do(t, http.MethodPost, "/api/guilds", tokA, map[string]any{"name": "100% a/b"})
	require.Equal(t, http.StatusCreated, status)

	status, body := env.do(t, http.MethodGet, "/api/guilds/100%25%20a%2Fb", tokA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"name":"100% a/b"`)

	_, _, err := env.dial(t, "/ws/group/100%25%20a%2Fb", tokA)
	require.NoError(t, err)
	env.waitSubscribers(t, roomkey.Group("100% a/b"), 1)
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	env := newTestEnv(t)
	_, tokA := env.user(t, "a@x", "Alice")
	env.user(t, "b@x", "Bob")

	conn, _, err := env.dial(t, "/ws/personal/b@x", tokA)
	require.NoError(t, err)
	env.waitSubscribers(t, roomkey.Pair("a@x", "b@x"), 1)

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte(`{"message":"x","kind":"admin"}`)))
	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte(`{"message":"   "}`)))
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "valid"}))

	assert.Equal(t, "valid", readFrame(t, conn).Message)
}
