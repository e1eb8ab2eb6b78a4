package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType WebSocket 消息类型
const (
	MsgTypeSubscribe  = "subscribe"  // 客户端订阅某个 Telegram 用户的事件
	MsgTypeSubscribed = "subscribed" // 订阅确认
	MsgTypeError      = "error"      // 错误消息
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
	sendBuffer = 256
)

// Message 服务端下发的消息
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Inbound 客户端上行消息，订阅需携带签名令牌
type Inbound struct {
	Type       string `json:"type"`
	TelegramID int64  `json:"telegram_id,omitempty"`
	Token      string `json:"token"`
}

// Verifier 校验订阅令牌，返回其所属的 Telegram 用户 ID
type Verifier func(token string) (int64, error)

// ErrUnauthorized 订阅令牌无效或与请求的用户不符
var ErrUnauthorized = errors.New("unauthorized subscription")

// Client WebSocket 客户端
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	telegramID int64 // 0 表示只接收广播，仅在 Run 协程中读写
}

type delivery struct {
	telegramID int64 // 0 表示所有客户端
	payload    []byte
}

type subscription struct {
	client     *Client
	telegramID int64 // 0 表示订阅被拒绝
}

// Hub WebSocket 连接管理中心
type Hub struct {
	logger     *zap.Logger
	verify     Verifier
	clients    map[*Client]bool
	deliver    chan delivery
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub 创建 Hub，verify 为 nil 时拒绝所有订阅
func NewHub(logger *zap.Logger, verify Verifier) *Hub {
	return &Hub{
		logger:     logger.Named("ws"),
		verify:     verify,
		clients:    make(map[*Client]bool),
		deliver:    make(chan delivery, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		done:       make(chan struct{}),
	}
}

// Run 运行 Hub，直到 ctx 取消
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client connected", zap.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected", zap.Int("total_clients", total))

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if sub.telegramID == 0 {
				if data, err := encode(MsgTypeError, map[string]string{"error": ErrUnauthorized.Error()}); err == nil {
					h.push(sub.client, data)
				}
				continue
			}
			sub.client.telegramID = sub.telegramID
			if data, err := encode(MsgTypeSubscribed, map[string]int64{"telegram_id": sub.telegramID}); err == nil {
				h.push(sub.client, data)
			}

		case d := <-h.deliver:
			for client := range h.clients {
				if d.telegramID != 0 && client.telegramID != d.telegramID {
					continue
				}
				h.push(client, d.payload)
			}
		}
	}
}

// push 非阻塞发送，慢消费者直接断开
func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		close(client.send)
		h.logger.Warn("WebSocket client too slow, dropped")
	}
}

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Data: data})
}

func (h *Hub) enqueue(telegramID int64, msgType string, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.String("type", msgType), zap.Error(err))
		return
	}

	select {
	case h.deliver <- delivery{telegramID: telegramID, payload: payload}:
	case <-h.done:
	default:
		h.logger.Warn("WebSocket delivery queue full, message dropped", zap.String("type", msgType))
	}
}

// Broadcast 广播消息给所有客户端
func (h *Hub) Broadcast(msgType string, data any) {
	h.enqueue(0, msgType, data)
}

// SendToUser 推送给订阅了该 Telegram 用户的客户端
func (h *Hub) SendToUser(telegramID int64, msgType string, data any) {
	if telegramID == 0 {
		return
	}
	h.enqueue(telegramID, msgType, data)
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// Register 注册客户端
func (c *Client) Register() bool {
	select {
	case c.hub.register <- c:
		return true
	case <-c.hub.done:
		return false
	}
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// ReadPump 读取订阅请求并保持连接活跃
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}

		if in.Type != MsgTypeSubscribe {
			continue
		}
		sub := subscription{client: c}
		if id, err := c.hub.authorize(in); err != nil {
			c.hub.logger.Warn("WebSocket subscription refused", zap.Int64("telegram_id", in.TelegramID), zap.Error(err))
		} else {
			sub.telegramID = id
		}
		select {
		case c.hub.subscribe <- sub:
		case <-c.hub.done:
			return
		}
	}
}

// authorize 校验订阅请求，telegram_id 可省略，若给出必须与令牌一致
func (h *Hub) authorize(in Inbound) (int64, error) {
	if h.verify == nil {
		return 0, ErrUnauthorized
	}
	id, err := h.verify(in.Token)
	if err != nil {
		return 0, errors.Join(ErrUnauthorized, err)
	}
	if id <= 0 || (in.TelegramID != 0 && in.TelegramID != id) {
		return 0, ErrUnauthorized
	}
	return id, nil
}

// WritePump 发送消息与心跳
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
