package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(zap.NewNop(), verifyTestToken)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		if !client.Register() {
			conn.Close()
			return
		}
		go client.WritePump()
		client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// verifyTestToken 接受 "tok-<id>" 形式的令牌
func verifyTestToken(token string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(token, "tok-"), 10, 64)
	if err != nil || !strings.HasPrefix(token, "tok-") {
		return 0, errors.New("bad token")
	}
	return id, nil
}

func tokenFor(telegramID int64) string {
	return "tok-" + strconv.FormatInt(telegramID, 10)
}

func subscribe(t *testing.T, conn *websocket.Conn, telegramID int64) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgTypeSubscribe, TelegramID: telegramID, Token: tokenFor(telegramID)}))
	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeSubscribed, msg.Type)
}

func TestHubRouting(t *testing.T) {
	hub, url := startHub(t)

	alice := dial(t, url)
	bob := dial(t, url)
	subscribe(t, alice, 1)
	subscribe(t, bob, 2)
	assert.Equal(t, 2, hub.ClientCount())

	hub.SendToUser(1, "vehicle_connected", map[string]string{"id": "v1"})
	hub.Broadcast("vehicle_status", "v1")

	// alice 先收到定向消息，再收到广播
	msg := readMessage(t, alice)
	assert.Equal(t, "vehicle_connected", msg.Type)
	assert.Equal(t, map[string]any{"id": "v1"}, msg.Data)
	assert.Equal(t, "vehicle_status", readMessage(t, alice).Type)

	// bob 只收到广播
	msg = readMessage(t, bob)
	assert.Equal(t, "vehicle_status", msg.Type)
	assert.Equal(t, "v1", msg.Data)
}

func TestHubIgnoresZeroUser(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url)
	subscribe(t, conn, 5)

	hub.SendToUser(0, "ignored", nil)
	hub.Broadcast("after", nil)
	assert.Equal(t, "after", readMessage(t, conn).Type)
}

func TestHubRefusesUnverifiedSubscribe(t *testing.T) {
	tests := []struct {
		name string
		in   Inbound
	}{
		{"no token", Inbound{Type: MsgTypeSubscribe, TelegramID: 42}},
		{"bad token", Inbound{Type: MsgTypeSubscribe, TelegramID: 42, Token: "forged"}},
		{"token for another user", Inbound{Type: MsgTypeSubscribe, TelegramID: 42, Token: tokenFor(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, url := startHub(t)
			conn := dial(t, url)

			require.NoError(t, conn.WriteJSON(tt.in))
			msg := readMessage(t, conn)
			assert.Equal(t, MsgTypeError, msg.Type)

			// 被拒绝的客户端收不到该用户的定向消息，只收到广播
			hub.SendToUser(42, "vehicle_connected", map[string]string{"id": "v1"})
			hub.Broadcast("after", nil)
			assert.Equal(t, "after", readMessage(t, conn).Type)
		})
	}
}

func TestHubSubscribeByTokenOnly(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgTypeSubscribe, Token: tokenFor(9)}))
	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeSubscribed, msg.Type)
	assert.Equal(t, map[string]any{"telegram_id": float64(9)}, msg.Data)

	hub.SendToUser(9, "vehicle_updated", nil)
	assert.Equal(t, "vehicle_updated", readMessage(t, conn).Type)
}

func TestHubWithoutVerifierRefusesAll(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	_, err := hub.authorize(Inbound{Type: MsgTypeSubscribe, TelegramID: 1, Token: tokenFor(1)})
	assert.ErrorIs(t, err, ErrUnauthorized)
}
