package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/logger"
)

func TestHub_DeliversToUserConnections(t *testing.T) {
	hub := NewHub(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	userID := uuid.New()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(conn, hub, userID).Serve()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected(userID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastToUser(userID, "order.completed", map[string]string{"status": "completed"}))
	require.NoError(t, hub.BroadcastToUser(uuid.New(), "order.created", nil))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "order.completed", env.Type)
	assert.Equal(t, "completed", env.Data["status"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.Connected(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StoppedRejectsBroadcast(t *testing.T) {
	hub := NewHub(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// буфер канала может принять сообщение, поэтому заполняем его до отказа
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = hub.BroadcastToUser(uuid.New(), "order.created", nil)
	}
	assert.Error(t, err)
}
