package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"requisition/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("ws-secret")

func newServer(t *testing.T) (*Hub, *httptest.Server) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, secret) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestServeWsRejectsBadTokens(t *testing.T) {
	_, srv := newServer(t)

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "not-a-token")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendToUserReachesOnlyThatUser(t *testing.T) {
	hub, srv := newServer(t)
	alice, bob := uuid.New(), uuid.New()

	aliceToken, err := middleware.IssueToken(secret, alice, nil, time.Hour)
	require.NoError(t, err)
	bobToken, err := middleware.IssueToken(secret, bob, nil, time.Hour)
	require.NoError(t, err)

	tab1, _, err := dial(t, srv, aliceToken)
	require.NoError(t, err)
	defer tab1.Close()
	tab2, _, err := dial(t, srv, aliceToken)
	require.NoError(t, err)
	defer tab2.Close()
	other, _, err := dial(t, srv, bobToken)
	require.NoError(t, err)
	defer other.Close()

	require.Eventually(t, func() bool {
		return hub.Connections(alice) == 2 && hub.Connections(bob) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, hub.SendToUser(alice, []byte(`{"type":"request.approved"}`)))
	assert.Equal(t, 0, hub.SendToUser(uuid.New(), []byte(`{}`)))

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"request.approved"}`, string(msg))
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv := newServer(t)
	user := uuid.New()
	token, err := middleware.IssueToken(secret, user, nil, time.Hour)
	require.NoError(t, err)

	conn, _, err := dial(t, srv, token)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connections(user) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections(user) == 0 }, time.Second, 10*time.Millisecond)
}
