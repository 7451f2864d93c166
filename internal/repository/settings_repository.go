package repository

import (
	"context"
	"errors"
	"time"

	"textenger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository 用户通知设置
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get 读取设置，从未保存过时返回默认值
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (model.UserSettings, error) {
	var s model.UserSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultSettings(userID), nil
	}
	return s, err
}

// Upsert 保存设置（按 user_id 覆盖）
func (r *SettingsRepository) Upsert(ctx context.Context, s *model.UserSettings) error {
	s.Normalize()
	s.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notification_sound_enabled", "notification_sound_volume", "updated_at"}),
	}).Create(s).Error
}
