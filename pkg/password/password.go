package password

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// 密码长度限制；bcrypt 只使用前72字节
const (
	MinLength = 6
	MaxBytes  = 72
)

var (
	// ErrTooShort 密码过短
	ErrTooShort = fmt.Errorf("password must be at least %d characters", MinLength)
	// ErrTooLong 密码超过 bcrypt 可处理的长度
	ErrTooLong = fmt.Errorf("password must be at most %d bytes", MaxBytes)
	// ErrMismatch 密码不匹配
	ErrMismatch = errors.New("password mismatch")
)

// Validate 检查密码是否满足长度要求
func Validate(plain string) error {
	if utf8.RuneCountInString(plain) < MinLength {
		return ErrTooShort
	}
	if len(plain) > MaxBytes {
		return ErrTooLong
	}
	return nil
}

// Hash 校验后生成密码哈希
func Hash(plain string) (string, error) {
	if err := Validate(plain); err != nil {
		return "", err
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify 校验密码
func Verify(plain, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
