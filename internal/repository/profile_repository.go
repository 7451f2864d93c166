package repository

import (
	"context"
	"errors"

	"textenger/internal/model"

	"gorm.io/gorm"
)

// ErrProfileNotFound 用户不存在
var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepository struct {
	orm *gorm.DB
}

func NewProfileRepository(orm *gorm.DB) *ProfileRepository {
	return &ProfileRepository{orm: orm}
}

func (r *ProfileRepository) Create(ctx context.Context, p *model.Profile) error {
	return r.orm.WithContext(ctx).Create(p).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (*model.Profile, error) {
	var p model.Profile
	if err := r.orm.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}
	return &p, nil
}

func (r *ProfileRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*model.Profile, error) {
	var p model.Profile
	if err := r.orm.WithContext(ctx).Where("username = ? OR email = ?", identifier, identifier).First(&p).Error; err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}
	return &p, nil
}

// Update 按列更新资料，fields 的键为列名
func (r *ProfileRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	res := r.orm.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ListOthers 除自己以外的用户，按用户名排序（创建房间时挑选成员）
func (r *ProfileRepository) ListOthers(ctx context.Context, self int64, limit int) ([]*model.Profile, error) {
	var profiles []*model.Profile
	err := r.orm.WithContext(ctx).
		Where("id <> ?", self).
		Order("username ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
