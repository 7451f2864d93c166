package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"textenger/internal/model"
	"textenger/internal/repository"
	"textenger/pkg/idgen"
	"textenger/pkg/jwt"
	"textenger/pkg/logger"
	"textenger/pkg/password"
	"textenger/pkg/storage"

	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists 用户名或邮箱已被占用
	ErrUserExists = errors.New("username or email already taken")
	// ErrUsernameRequired 用户名不能改为空
	ErrUsernameRequired = errors.New("username is required")
	// ErrUnsupportedAvatar 头像只接受常见图片格式
	ErrUnsupportedAvatar = errors.New("avatar must be a png, jpeg, gif or webp image")
	// ErrAvatarsDisabled 未配置头像存储
	ErrAvatarsDisabled = errors.New("avatar storage is not configured")
)

var avatarExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

type UserService struct {
	repo       *repository.ProfileRepository
	jwtService *jwt.JWTService

	avatars       *storage.Local
	avatarsBucket string
}

func NewUserService(repo *repository.ProfileRepository, jwtService *jwt.JWTService) *UserService {
	return &UserService{repo: repo, jwtService: jwtService}
}

// WithAvatarStore 头像写入 store 的 bucket 桶，资料里保存公开URL
func (s *UserService) WithAvatarStore(store *storage.Local, bucket string) *UserService {
	s.avatars = store
	s.avatarsBucket = bucket
	return s
}

// Register 注册并签发 token
func (s *UserService) Register(ctx context.Context, username, email, displayName, plainPassword string) (*model.Profile, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || plainPassword == "" {
		return nil, "", errors.New("username, email and password are required")
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, "", err
	}
	for _, identifier := range []string{username, email} {
		if _, err := s.repo.GetByUsernameOrEmail(ctx, identifier); err == nil {
			return nil, "", ErrUserExists
		} else if !errors.Is(err, repository.ErrProfileNotFound) {
			return nil, "", err
		}
	}

	p := &model.Profile{
		ID:           idgen.New(),
		Username:     username,
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, "", err
	}
	token, err := s.jwtService.GenerateToken(p.ID, p.Username)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

// Login 用户名或邮箱登录
func (s *UserService) Login(ctx context.Context, identifier, plainPassword string) (*model.Profile, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plainPassword == "" {
		return nil, "", errors.New("identifier and password are required")
	}
	p, err := s.repo.GetByUsernameOrEmail(ctx, identifier)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if err := password.Verify(plainPassword, p.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.jwtService.GenerateToken(p.ID, p.Username)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

// Profile 按ID获取资料
func (s *UserService) Profile(ctx context.Context, id int64) (*model.Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// Others 除自己外的用户
func (s *UserService) Others(ctx context.Context, self int64, limit int) ([]*model.Profile, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.repo.ListOthers(ctx, self, limit)
}

// UpdateProfile 修改自己的资料，用户名与其他人的用户名、邮箱都不能重复
func (s *UserService) UpdateProfile(ctx context.Context, self int64, u model.ProfileUpdate) (*model.Profile, error) {
	fields := make(map[string]any)
	if u.Username != nil {
		name := strings.TrimSpace(*u.Username)
		if name == "" {
			return nil, ErrUsernameRequired
		}
		taken, err := s.repo.GetByUsernameOrEmail(ctx, name)
		switch {
		case err == nil && taken.ID != self:
			return nil, ErrUserExists
		case err != nil && !errors.Is(err, repository.ErrProfileNotFound):
			return nil, err
		}
		fields["username"] = name
	}
	if u.DisplayName != nil {
		fields["display_name"] = strings.TrimSpace(*u.DisplayName)
	}
	if u.Bio != nil {
		fields["bio"] = strings.TrimSpace(*u.Bio)
	}
	if u.AvatarURL != nil {
		fields["avatar_url"] = strings.TrimSpace(*u.AvatarURL)
	}
	if len(fields) > 0 {
		if err := s.repo.Update(ctx, self, fields); err != nil {
			return nil, err
		}
	}
	return s.repo.GetByID(ctx, self)
}

// SetAvatar 保存头像文件并把公开URL写回资料
// 对象名为 <用户ID>-<毫秒时间戳>.<扩展名>，旧头像不删除
func (s *UserService) SetAvatar(ctx context.Context, self int64, filename string, r io.Reader) (*model.Profile, error) {
	if s.avatars == nil {
		return nil, ErrAvatarsDisabled
	}
	ext := strings.ToLower(path.Ext(filename))
	if !avatarExts[ext] {
		return nil, ErrUnsupportedAvatar
	}
	if _, err := s.repo.GetByID(ctx, self); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%d-%d%s", self, time.Now().UnixMilli(), ext)
	n, err := s.avatars.Save(s.avatarsBucket, name, r)
	if err != nil {
		return nil, err
	}
	logger.Info("头像已上传", zap.Int64("user_id", self), zap.String("path", name), zap.Int64("size", n))

	url := s.avatars.PublicURL(s.avatarsBucket, name)
	return s.UpdateProfile(ctx, self, model.ProfileUpdate{AvatarURL: &url})
}
