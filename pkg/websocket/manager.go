package websocket

import (
	"context"
	"sync"

	"textenger/pkg/logger"
	"textenger/pkg/redis"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "textenger",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "当前打开的实时连接数",
	})
	slowClientsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "textenger",
		Subsystem: "ws",
		Name:      "slow_clients_total",
		Help:      "发送缓冲区写满而被断开的连接数",
	})
)

// Client 一条订阅某个主题的WebSocket连接
// Topic: redis 频道名（会话作用域或收件箱）
// Send: 待写出的事件

type Client struct {
	UserID int64
	Topic  string
	Conn   *websocket.Conn
	Send   chan []byte

	closeOnce sync.Once
}

func newClient(userID int64, topic string) *Client {
	return &Client{UserID: userID, Topic: topic, Send: make(chan []byte, 256)}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// Manager 按主题管理本节点的实时连接
// 所有节点都通过 redis 模式订阅接收事件，再分发给本地连接

type Manager struct {
	topics map[string]map[*Client]struct{}
	lock   sync.RWMutex
}

var manager = NewManager()

// NewManager 创建管理器
func NewManager() *Manager {
	return &Manager{
		topics: make(map[string]map[*Client]struct{}),
	}
}

// GetManager 获取全局WebSocket管理器
func GetManager() *Manager {
	return manager
}

// AddClient 登记连接
func (m *Manager) AddClient(c *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	set, ok := m.topics[c.Topic]
	if !ok {
		set = make(map[*Client]struct{})
		m.topics[c.Topic] = set
	}
	set[c] = struct{}{}
	connectionsGauge.Inc()
}

// RemoveClient 注销连接并关闭其发送通道，可重复调用
func (m *Manager) RemoveClient(c *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.removeLocked(c)
}

func (m *Manager) removeLocked(c *Client) {
	set, ok := m.topics[c.Topic]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(m.topics, c.Topic)
	}
	c.close()
	connectionsGauge.Dec()
}

// Broadcast 把事件推给订阅该主题的所有本地连接
// 缓冲区写满的连接直接断开，客户端重连后会补齐
func (m *Manager) Broadcast(topic string, payload []byte) {
	var slow []*Client
	m.lock.RLock()
	for c := range m.topics[topic] {
		select {
		case c.Send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	m.lock.RUnlock()

	if len(slow) == 0 {
		return
	}
	m.lock.Lock()
	for _, c := range slow {
		logger.Warn("连接发送缓冲已满，断开", zap.Int64("user_id", c.UserID), zap.String("topic", topic))
		slowClientsTotal.Inc()
		m.removeLocked(c)
	}
	m.lock.Unlock()
}

// Count 某个主题的本地连接数
func (m *Manager) Count(topic string) int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.topics[topic])
}

// CloseAll 关闭全部连接（服务退出时）
func (m *Manager) CloseAll() {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, set := range m.topics {
		for c := range set {
			m.removeLocked(c)
		}
	}
}

// Run 订阅 redis 上的全部会话与收件箱频道，直到 ctx 结束
func (m *Manager) Run(ctx context.Context) error {
	ps, err := redis.PSubscribe(ctx, redis.ScopeChannelPrefix+"*", redis.InboxChannelPrefix+"*")
	if err != nil {
		return err
	}
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m.Broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}
