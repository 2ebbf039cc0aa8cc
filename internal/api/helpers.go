package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/auth"
)

// sessionIdentity 返回请求的会话身份。优先使用会话中间件注入的上下文，
// 未经过中间件的路由则直接读取 Cookie 自行校验。
func sessionIdentity(c *gin.Context, authService *auth.AuthService) (uint, string, bool) {
	if accountID, ok := middleware.AccountIDFromContext(c); ok {
		role, _ := middleware.RoleFromContext(c)
		return accountID, role, true
	}

	if authService == nil {
		return 0, "", false
	}
	token, err := c.Cookie(middleware.SessionCookieName)
	if err != nil || strings.TrimSpace(token) == "" {
		return 0, "", false
	}
	claims, err := authService.ValidateToken(token)
	if err != nil {
		return 0, "", false
	}
	return claims.AccountID, claims.Role, true
}

// isUniqueViolation 判断数据库错误是否为唯一约束冲突。
// 同时覆盖 PostgreSQL 与测试用 SQLite 的错误文案。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique")
}

// startOfToday 返回服务器本地时区当天零点。截止日期校验按天粒度比较。
func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// afterToday 按天粒度判断 t 是否严格晚于今天，忽略一天内的具体时刻。
func afterToday(t time.Time) bool {
	return t.Format(time.DateOnly) > time.Now().Format(time.DateOnly)
}
