package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 负责处理密码哈希、会话令牌的签发与校验。
type AuthService struct {
	secret      []byte
	sessionTTL  time.Duration
	rememberTTL time.Duration
}

// SessionClaims 表示会话令牌中的业务字段，便于中间件读取身份信息。
type SessionClaims struct {
	AccountID uint   `json:"account_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService 构造服务实例。secret 为进程级配置，启动时注入。
func NewAuthService(secret string, sessionTTL, rememberTTL time.Duration) (*AuthService, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if sessionTTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	if rememberTTL < sessionTTL {
		return nil, errors.New("remember ttl must not be shorter than session ttl")
	}

	return &AuthService{
		secret:      []byte(secret),
		sessionTTL:  sessionTTL,
		rememberTTL: rememberTTL,
	}, nil
}

// HashPassword 使用 bcrypt 生成密码哈希。
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash 校验密码是否匹配哈希。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken 为账号签发会话令牌，rememberMe 决定使用哪条有效期。
// 返回令牌本身与其有效期，调用方据此设置 Cookie 的 MaxAge。
func (s *AuthService) IssueToken(accountID uint, role string, rememberMe bool) (string, time.Duration, error) {
	ttl := s.sessionTTL
	if rememberMe {
		ttl = s.rememberTTL
	}

	now := time.Now()
	claims := SessionClaims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(accountID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return signed, ttl, nil
}

// ValidateToken 解析并验证会话令牌。
func (s *AuthService) ValidateToken(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// SessionTTL 暴露普通会话有效期。
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// RememberTTL 暴露“记住我”会话有效期。
func (s *AuthService) RememberTTL() time.Duration {
	return s.rememberTTL
}
