package websocket

import (
	"errors"
	"net/http"
	"time"

	"textenger/config"
	"textenger/internal/model"
	"textenger/pkg/jwt"
	"textenger/pkg/logger"
	"textenger/pkg/redis"
	"textenger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// InboxScope 订阅当前用户全部私聊的伪作用域
const InboxScope = "inbox"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域
	},
}

// Handler 实时事件推送入口 GET /ws?token=&scope=
type Handler struct {
	jwt     *jwt.JWTService
	cfg     config.WebSocketConfig
	manager *Manager
}

// NewHandler 创建处理器
func NewHandler(jwtSvc *jwt.JWTService, cfg config.WebSocketConfig, m *Manager) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Handler{jwt: jwtSvc, cfg: cfg, manager: m}
}

// topicFor 根据 scope 参数确定订阅的 redis 频道
// 私聊只允许参与方订阅
func topicFor(raw string, self int64) (string, error) {
	if raw == InboxScope {
		return redis.InboxChannel(self), nil
	}
	scope, err := model.ParseScope(raw, self)
	if err != nil {
		return "", err
	}
	if err := scope.Validate(); err != nil {
		return "", err
	}
	return redis.ScopeChannel(scope.Key()), nil
}

// ServeWS Gin路由处理函数
func (h *Handler) ServeWS(c *gin.Context) {
	claims, err := h.jwt.ValidateToken(jwt.TokenFromRequest(c))
	if err != nil {
		response.Unauthorized(c, "token无效或已过期")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Unauthorized(c, "token无效")
		return
	}

	topic, err := topicFor(c.Query("scope"), userID)
	if err != nil {
		if errors.Is(err, model.ErrInvalidScope) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, "订阅失败")
		return
	}

	// 握手前先登记，客户端拿到连接后发生的插入不会漏掉
	client := newClient(userID, topic)
	h.manager.AddClient(client)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.manager.RemoveClient(client)
		return
	}
	client.Conn = conn

	log := logger.Named("ws").With(zap.Int64("user_id", userID), zap.String("topic", topic))
	log.Debug("实时连接建立")

	go h.writePump(client)
	h.readPump(client)

	h.manager.RemoveClient(client)
	log.Debug("实时连接关闭")
}

// writePump 写协程：转发事件并定时发送ping
func (h *Handler) writePump(client *Client) {
	conn := client.Conn
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// readPump 读协程：只处理心跳与关闭，超时未收到任何读事件则断开
func (h *Handler) readPump(client *Client) {
	conn := client.Conn
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	}
}
