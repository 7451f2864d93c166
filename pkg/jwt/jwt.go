package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"textenger/config"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// JWTService 提供 JWT 生成与校验能力
// 使用对称密钥 HS256
// 访问令牌的 Subject 存用户ID，Data 存用户名
// 附件签名URL也用同一把密钥签发（Audience 区分）

type JWTService struct {
	secretKey   []byte        // 对称密钥
	issuer      string        // 签发者
	expireAfter time.Duration // 过期时间
}

// CustomClaims 自定义声明载荷
// Data 用于扩展非敏感业务字段

type CustomClaims struct {
	Data map[string]interface{} `json:"data,omitempty"`
	jwtv5.RegisteredClaims
}

// UserID 解析 Subject 中的用户ID
func (c *CustomClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return id, nil
}

// Username Data 中的用户名
func (c *CustomClaims) Username() string {
	if c.Data != nil {
		if u, ok := c.Data["username"].(string); ok {
			return u
		}
	}
	return ""
}

const (
	audienceAccess = "access"
	audienceObject = "object"
)

// NewJWTService 创建 JWT 服务
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secretKey:   []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		expireAfter: cfg.ExpireTime,
	}
}

// GenerateToken 生成访问令牌
func (s *JWTService) GenerateToken(userID int64, username string) (string, error) {
	if userID <= 0 {
		return "", errors.New("userID is required")
	}
	return s.sign(strconv.FormatInt(userID, 10), audienceAccess, s.expireAfter, map[string]interface{}{
		"username": username,
	})
}

// ValidateToken 校验并解析访问令牌
func (s *JWTService) ValidateToken(tokenString string) (*CustomClaims, error) {
	return s.parse(tokenString, audienceAccess)
}

// GenerateObjectToken 为存储对象签发限时访问令牌
// Subject 为 "bucket/path"
func (s *JWTService) GenerateObjectToken(bucket, path string, ttl time.Duration) (string, error) {
	if bucket == "" || path == "" {
		return "", errors.New("bucket and path are required")
	}
	return s.sign(bucket+"/"+path, audienceObject, ttl, nil)
}

// ValidateObjectToken 校验对象令牌，返回 "bucket/path"
func (s *JWTService) ValidateObjectToken(tokenString string) (string, error) {
	claims, err := s.parse(tokenString, audienceObject)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *JWTService) sign(subject, audience string, ttl time.Duration, data map[string]interface{}) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		Data: data,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwtv5.ClaimStrings{audience},
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token failed: %w", err)
	}
	return signed, nil
}

func (s *JWTService) parse(tokenString, audience string) (*CustomClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token is empty")
	}
	claims := &CustomClaims{}
	parsedToken, err := jwtv5.ParseWithClaims(
		tokenString,
		claims,
		// 验证签名方法
		func(token *jwtv5.Token) (interface{}, error) {
			if token.Method != jwtv5.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secretKey, nil
		},
		jwtv5.WithIssuer(s.issuer),
		jwtv5.WithAudience(audience),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	if !parsedToken.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
