package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/auth"
)

// SessionCookieName 是承载会话令牌的 Cookie 名。令牌只经 Cookie 传输，
// 不出现在任何 JSON 响应体里。
const SessionCookieName = "token"

const (
	accountIDKey = "accountID"
	roleKey      = "accountRole"
)

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// SessionMiddleware 从 Cookie 中取出会话令牌并校验，
// 成功后把 {accountID, role} 注入上下文。缺失、伪造与过期一律 401，
// 不向调用方区分具体原因。
func SessionMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || strings.TrimSpace(token) == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(accountIDKey, claims.AccountID)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// AccountIDFromContext 返回会话中间件注入的账号 ID。
func AccountIDFromContext(c *gin.Context) (uint, bool) {
	value, ok := c.Get(accountIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

// RoleFromContext 返回会话中间件注入的角色。
func RoleFromContext(c *gin.Context) (string, bool) {
	value, ok := c.Get(roleKey)
	if !ok {
		return "", false
	}
	role, ok := value.(string)
	return role, ok
}

// SetIdentity 供测试在不经过中间件时伪造会话身份。
func SetIdentity(c *gin.Context, accountID uint, role string) {
	c.Set(accountIDKey, accountID)
	c.Set(roleKey, role)
}
