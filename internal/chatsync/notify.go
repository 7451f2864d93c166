package chatsync

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"textenger/internal/model"
)

// CuePlayer 实际播放提示音的设备
type CuePlayer interface {
	Play(kind model.ScopeKind, volume float64) error
}

// Notifications 通知设置与提示音
// 设置在 Load 之前使用默认值（开启，音量0.7）
type Notifications struct {
	src    SettingsSource
	player CuePlayer
	log    *zap.Logger

	mu       sync.RWMutex
	settings model.UserSettings
}

func NewNotifications(src SettingsSource, player CuePlayer, logger *zap.Logger) *Notifications {
	if logger == nil {
		logger = zap.L()
	}
	return &Notifications{
		src:      src,
		player:   player,
		log:      logger.Named("notify"),
		settings: model.DefaultSettings(0),
	}
}

// Load 从后端读取设置，失败时保留当前值
func (n *Notifications) Load(ctx context.Context) error {
	s, err := n.src.LoadSettings(ctx)
	if err != nil {
		n.log.Error("加载通知设置失败", zap.Error(err))
		return fmt.Errorf("load settings: %w", err)
	}
	s.Normalize()
	n.mu.Lock()
	n.settings = s
	n.mu.Unlock()
	return nil
}

// Save 合并并保存设置
func (n *Notifications) Save(ctx context.Context, update func(*model.UserSettings)) (model.UserSettings, error) {
	n.mu.RLock()
	next := n.settings
	n.mu.RUnlock()

	update(&next)
	next.Normalize()
	if err := n.src.SaveSettings(ctx, next); err != nil {
		n.log.Error("保存通知设置失败", zap.Error(err))
		return n.Settings(), fmt.Errorf("save settings: %w", err)
	}
	n.mu.Lock()
	n.settings = next
	n.mu.Unlock()
	return next, nil
}

func (n *Notifications) Settings() model.UserSettings {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.settings
}

// Cue 播放提示音；关闭提示音或没有播放设备时不做任何事
func (n *Notifications) Cue(_ context.Context, kind model.ScopeKind) {
	s := n.Settings()
	if !s.NotificationSoundEnabled || n.player == nil {
		return
	}
	if err := n.player.Play(kind, s.NotificationSoundVolume); err != nil {
		n.log.Debug("播放提示音失败", zap.Error(err))
	}
}

// TerminalBell 终端响铃，音量为0时静音
type TerminalBell struct {
	W io.Writer
}

func (b TerminalBell) Play(_ model.ScopeKind, volume float64) error {
	if volume <= 0 {
		return nil
	}
	_, err := io.WriteString(b.W, "\a")
	return err
}
