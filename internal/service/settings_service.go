package service

import (
	"context"

	"textenger/internal/model"
	"textenger/internal/repository"
)

// SettingsService 通知设置
type SettingsService struct {
	repo *repository.SettingsRepository
}

func NewSettingsService(repo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// Get 读取设置，未保存过时返回默认值
func (s *SettingsService) Get(ctx context.Context, self int64) (model.UserSettings, error) {
	return s.repo.Get(ctx, self)
}

// Update 保存设置，只修改请求中给出的字段
func (s *SettingsService) Update(ctx context.Context, self int64, soundEnabled *bool, volume *float64) (model.UserSettings, error) {
	current, err := s.repo.Get(ctx, self)
	if err != nil {
		return model.UserSettings{}, err
	}
	if soundEnabled != nil {
		current.NotificationSoundEnabled = *soundEnabled
	}
	if volume != nil {
		current.NotificationSoundVolume = *volume
	}
	current.UserID = self
	if err := s.repo.Upsert(ctx, &current); err != nil {
		return model.UserSettings{}, err
	}
	return current, nil
}
