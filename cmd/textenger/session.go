package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// session 本地保存的登录态
type session struct {
	Server   string `yaml:"server"`
	Token    string `yaml:"token"`
	UserID   int64  `yaml:"userID"`
	Username string `yaml:"username"`
}

func sessionPath() (string, error) {
	if flagSession != "" {
		return flagSession, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("无法确定配置目录: %w", err)
	}
	return filepath.Join(dir, "textenger", "session.yaml"), nil
}

// loadSession 读取登录态，文件不存在时返回空值
func loadSession() (*session, error) {
	p, err := sessionPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return &session{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", p, err)
	}
	return &s, nil
}

func saveSession(s *session) error {
	p, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

func clearSession() error {
	p, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
