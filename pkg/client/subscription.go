package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"textenger/internal/chatsync"
	"textenger/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// InboxScope 订阅自己全部私聊的伪作用域
const InboxScope = "inbox"

// Subscription 一条 WebSocket 连接上的插入事件流
type Subscription struct {
	conn   *websocket.Conn
	events chan model.InsertEvent
	log    *zap.Logger

	mu      sync.Mutex
	err     error
	closing bool
	stop    chan struct{}
	done    chan struct{}
}

func (s *Subscription) Events() <-chan model.InsertEvent { return s.events }

// Err 连接结束的原因，主动 Close 时为 nil
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close 发送关闭帧并等待读协程退出
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closing = true
	close(s.stop)
	s.mu.Unlock()

	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *Subscription) readLoop(readTimeout time.Duration) {
	defer close(s.done)
	defer close(s.events)

	extend := func() {
		if readTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		}
	}
	extend()
	s.conn.SetPingHandler(func(data string) error {
		extend()
		err := s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}
		extend()

		var ev model.InsertEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.Message == nil {
			s.log.Warn("忽略无法解析的实时事件", zap.Error(err))
			continue
		}
		select {
		case s.events <- ev:
		case <-s.stop:
			return
		}
	}
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return
	}
	s.err = fmt.Errorf("realtime connection lost: %w", err)
}

// Subscribe 订阅单个作用域的插入事件
func (c *Client) Subscribe(ctx context.Context, scope model.Scope) (chatsync.Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	sub, err := c.subscribe(ctx, scope.Key())
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeInbox 订阅所有与自己相关的私聊插入
func (c *Client) SubscribeInbox(ctx context.Context) (*Subscription, error) {
	return c.subscribe(ctx, InboxScope)
}

func (c *Client) subscribe(ctx context.Context, scopeKey string) (*Subscription, error) {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + "/ws"
	u.RawPath = ""
	u.RawQuery = url.Values{"scope": {scopeKey}}.Encode()

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, handshakeError(resp, err)
	}
	conn.SetReadLimit(1 << 20)

	sub := &Subscription{
		conn:   conn,
		events: make(chan model.InsertEvent, 64),
		log:    c.log.With(zap.String("scope", scopeKey)),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go sub.readLoop(c.ReadTimeout)
	return sub, nil
}

// handshakeError 握手被拒时服务端会返回统一响应，400 视为作用域非法
func handshakeError(resp *http.Response, err error) error {
	if resp == nil || resp.Body == nil {
		return fmt.Errorf("dial realtime: %w", err)
	}
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &env) != nil || env.Code == 0 {
		return fmt.Errorf("dial realtime: %w", err)
	}
	apiErr := &APIError{Code: env.Code, Message: env.Message}
	if env.Code == http.StatusBadRequest {
		return fmt.Errorf("%w: %w", model.ErrInvalidScope, apiErr)
	}
	return apiErr
}
