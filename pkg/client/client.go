// Package client 通过 HTTP 与 WebSocket 访问 textenger 服务端
// Client 实现了 chatsync 需要的全部后端接口
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"textenger/config"
	"textenger/internal/chatsync"
	"textenger/internal/model"
	"textenger/pkg/response"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// APIError 服务端返回的业务错误（响应体中的 code != 0）
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("textenger: %d %s", e.Code, e.Message)
}

// IsCode 判断 err 是否为指定业务码的 APIError
func IsCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// envelope 统一响应结构
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client 服务端客户端，保存登录后的 token 与当前用户
type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	log     *zap.Logger

	// ReadTimeout 实时连接在收到任何数据（含ping）之前的最长等待
	ReadTimeout time.Duration

	mu    sync.RWMutex
	token string
	self  *model.Profile
}

var (
	_ chatsync.Backend         = (*Client)(nil)
	_ chatsync.ComposerBackend = (*Client)(nil)
	_ chatsync.SettingsSource  = (*Client)(nil)
)

// Option 客户端可选参数
type Option func(*Client)

// WithHTTPClient 指定底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New 创建客户端，baseURL 形如 http://localhost:8080
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL:     u,
		http:        &http.Client{Timeout: 15 * time.Second},
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:         zap.NewNop(),
		ReadTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig 按客户端配置创建
func NewFromConfig(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	hc := &http.Client{Timeout: cfg.Timeout}
	return New(cfg.BaseURL, append([]Option{WithHTTPClient(hc)}, opts...)...)
}

// SetToken 恢复已保存的登录态；当前用户需调用 Me 重新获取
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		c.self = nil
	}
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// CurrentUserID 当前登录用户
func (c *Client) CurrentUserID() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.self == nil {
		return 0, false
	}
	return c.self.ID, true
}

// Self 当前用户资料
func (c *Client) Self() *model.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// endpoint 拼接完整地址，escapedPath 需已转义
func (c *Client) endpoint(escapedPath string, query url.Values) string {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + escapedPath
	u.Path, _ = url.PathUnescape(u.RawPath)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do 发送请求并解析统一响应
func (c *Client) do(ctx context.Context, method, p string, query url.Values, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p, query), r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("请求完成",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return decode(resp, out)
}

// decode 解析统一响应，code != 0 时返回 *APIError
func decode(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) authenticated(auth *response.AuthResponse) *model.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = auth.AccessToken
	c.self = auth.User
	return auth.User
}

// Register 注册并登录
func (c *Client) Register(ctx context.Context, username, email, displayName, password string) (*model.Profile, error) {
	var auth response.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/users/register", nil, map[string]string{
		"username":     username,
		"email":        email,
		"display_name": displayName,
		"password":     password,
	}, &auth)
	if err != nil {
		return nil, err
	}
	return c.authenticated(&auth), nil
}

// Login 用户名或邮箱登录
func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (*model.Profile, error) {
	var auth response.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/users/login", nil, map[string]string{
		"usernameOrEmail": usernameOrEmail,
		"password":        password,
	}, &auth)
	if err != nil {
		return nil, err
	}
	return c.authenticated(&auth), nil
}

// Logout 只清除本地登录态
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.self = nil
}

// Me 用当前 token 读取自己的资料
func (c *Client) Me(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/profile", nil, nil, &p); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.self = &p
	c.mu.Unlock()
	return &p, nil
}

// UpdateProfile 修改自己的资料，nil 字段不变
func (c *Client) UpdateProfile(ctx context.Context, u model.ProfileUpdate) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, http.MethodPatch, "/api/v1/users/profile", nil, u, &p); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.self = &p
	c.mu.Unlock()
	return &p, nil
}

// UploadAvatar 上传头像，服务端保存后把公开URL写入资料
func (c *Client) UploadAvatar(ctx context.Context, filename string, r io.Reader, contentType string) (*model.Profile, error) {
	var p model.Profile
	if err := c.postFile(ctx, "/api/v1/users/profile/avatar", filename, r, contentType, &p); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.self = &p
	c.mu.Unlock()
	return &p, nil
}

// Profiles 除自己外的用户
func (c *Client) Profiles(ctx context.Context) ([]*model.Profile, error) {
	var list []*model.Profile
	err := c.do(ctx, http.MethodGet, "/api/v1/profiles", nil, nil, &list)
	return list, err
}

func (c *Client) Profile(ctx context.Context, id int64) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/profiles/"+strconv.FormatInt(id, 10), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Conversations 私聊会话列表
func (c *Client) Conversations(ctx context.Context) ([]model.ConversationSummary, error) {
	var list []model.ConversationSummary
	err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, nil, &list)
	return list, err
}

// Rooms 当前用户加入的房间
func (c *Client) Rooms(ctx context.Context) ([]model.Room, error) {
	var list []model.Room
	err := c.do(ctx, http.MethodGet, "/api/v1/rooms", nil, nil, &list)
	return list, err
}

// CreateRoom 创建房间，memberIDs 不含自己
func (c *Client) CreateRoom(ctx context.Context, name, description, iconURL string, memberIDs []int64) (*model.Room, error) {
	ids := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	var room model.Room
	err := c.do(ctx, http.MethodPost, "/api/v1/rooms", nil, map[string]any{
		"name":        name,
		"description": description,
		"icon_url":    iconURL,
		"member_ids":  ids,
	}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) Channels(ctx context.Context, roomID int64) ([]model.Channel, error) {
	var list []model.Channel
	err := c.do(ctx, http.MethodGet, "/api/v1/rooms/"+strconv.FormatInt(roomID, 10)+"/channels", nil, nil, &list)
	return list, err
}

func (c *Client) CreateChannel(ctx context.Context, roomID int64, name string, typ model.ChannelType) (*model.Channel, error) {
	var ch model.Channel
	err := c.do(ctx, http.MethodPost, "/api/v1/rooms/"+strconv.FormatInt(roomID, 10)+"/channels", nil, map[string]any{
		"name": name,
		"type": typ,
	}, &ch)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) Members(ctx context.Context, roomID int64) ([]model.RoomMember, error) {
	var list []model.RoomMember
	err := c.do(ctx, http.MethodGet, "/api/v1/rooms/"+strconv.FormatInt(roomID, 10)+"/members", nil, nil, &list)
	return list, err
}

// LoadSettings 读取通知设置
func (c *Client) LoadSettings(ctx context.Context) (model.UserSettings, error) {
	var s model.UserSettings
	err := c.do(ctx, http.MethodGet, "/api/v1/settings", nil, nil, &s)
	return s, err
}

// SaveSettings 保存通知设置
func (c *Client) SaveSettings(ctx context.Context, s model.UserSettings) error {
	return c.do(ctx, http.MethodPut, "/api/v1/settings", nil, map[string]any{
		"notification_sound_enabled": s.NotificationSoundEnabled,
		"notification_sound_volume":  s.NotificationSoundVolume,
	}, nil)
}
