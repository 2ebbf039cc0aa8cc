package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/auth"
	"jobBoard/internal/database"
)

// 登录失败时对未知邮箱与错误密码返回同一份文案，避免泄露哪个字段出错。
const badCredentialsMessage = "password or email is incorrect"

// AuthHandler 处理注册、登录与退出。
type AuthHandler struct {
	db                    *gorm.DB
	authService           *auth.AuthService
	redis                 redis.UniversalClient
	logger                *slog.Logger
	loginRateLimitPerHour int
	loginLockThreshold    int
	loginLockTTL          time.Duration
	cookieDomain          string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, redisClient redis.UniversalClient, logger *slog.Logger, loginRateLimitPerHour int, loginLockThreshold int, loginLockTTL time.Duration, cookieDomain string) *AuthHandler {
	return &AuthHandler{
		db:                    db,
		authService:           authService,
		redis:                 redisClient,
		logger:                logger,
		loginRateLimitPerHour: loginRateLimitPerHour,
		loginLockThreshold:    loginLockThreshold,
		loginLockTTL:          loginLockTTL,
		cookieDomain:          cookieDomain,
	}
}

type registerRequest struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`

	// 求职者字段
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`

	// 雇主字段
	CompanyName string `json:"companyName"`
	Industry    string `json:"industry"`
	Size        string `json:"size"`

	// 两种角色共用
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
}

// missingFields 按角色返回缺失的必填字段。
func (r registerRequest) missingFields() []string {
	required := map[string]string{
		"email":       r.Email,
		"password":    r.Password,
		"phoneNumber": r.PhoneNumber,
		"address":     r.Address,
	}
	switch r.Role {
	case database.RoleJobSeeker:
		required["firstName"] = r.FirstName
		required["lastName"] = r.LastName
	case database.RoleEmployer:
		required["companyName"] = r.CompanyName
		required["industry"] = r.Industry
		required["size"] = r.Size
	}

	var missing []string
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Register 创建账号与对应角色的资料。两步写入不在一个事务里：
// 资料插入失败时回滚删除刚创建的账号（补偿），与原有行为保持一致。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if req.Role != database.RoleJobSeeker && req.Role != database.RoleEmployer {
		BadRequest(c, "invalid role")
		return
	}
	if missing := req.missingFields(); len(missing) > 0 {
		BadRequest(c, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(
		slog.String("email", req.Email),
		slog.String("role", req.Role),
	)

	var existing database.Account
	if err := h.db.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error; err == nil {
		logger.Info("register conflict: email already exists")
		Conflict(c, "email already used")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("register lookup failed", slog.Any("error", err))
		Internal(c, err.Error())
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, err.Error())
		return
	}

	account := database.Account{
		Email:        req.Email,
		PasswordHash: hashed,
		Role:         req.Role,
	}
	if err := h.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isUniqueViolation(err) {
			Conflict(c, "email already used")
			return
		}
		logger.Error("create account failed", slog.Any("error", err))
		Internal(c, err.Error())
		return
	}

	if err := h.createProfile(ctx, account, req); err != nil {
		// 补偿：删除第一步创建的账号，再上报冲突或系统错误。
		if delErr := h.db.WithContext(ctx).Unscoped().Delete(&account).Error; delErr != nil {
			logger.Error("register compensation failed", slog.Any("error", delErr))
		}
		var pc *profileConflictError
		if errors.As(err, &pc) {
			logger.Info("register conflict: " + pc.msg)
			BadRequest(c, pc.msg)
			return
		}
		logger.Error("create profile failed", slog.Any("error", err))
		Internal(c, err.Error())
		return
	}

	logger.Info("account registered", slog.Uint64("account_id", uint64(account.ID)))
	c.JSON(http.StatusCreated, gin.H{
		"id":    account.ID,
		"email": account.Email,
		"role":  account.Role,
	})
}

// profileConflictError 表示资料创建阶段的唯一性冲突，按原有行为映射为 400。
type profileConflictError struct {
	msg string
}

func (e *profileConflictError) Error() string { return e.msg }

func (h *AuthHandler) createProfile(ctx context.Context, account database.Account, req registerRequest) error {
	// 两种资料共用同一个手机号唯一空间：插入前先查另一张表。
	if taken, err := h.phoneNumberTaken(ctx, account.Role, req.PhoneNumber); err != nil {
		return err
	} else if taken {
		return &profileConflictError{msg: "phone number already used"}
	}

	var err error
	switch account.Role {
	case database.RoleJobSeeker:
		err = h.db.WithContext(ctx).Create(&database.JobSeekerProfile{
			AccountID:   account.ID,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			PhoneNumber: req.PhoneNumber,
			Address:     req.Address,
		}).Error
	case database.RoleEmployer:
		err = h.db.WithContext(ctx).Create(&database.CompanyProfile{
			AccountID:   account.ID,
			CompanyName: req.CompanyName,
			Industry:    req.Industry,
			Size:        req.Size,
			PhoneNumber: req.PhoneNumber,
			Address:     req.Address,
		}).Error
	}
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "company_name") {
			return &profileConflictError{msg: "company name already used"}
		}
		return &profileConflictError{msg: "phone number already used"}
	}
	return err
}

func (h *AuthHandler) phoneNumberTaken(ctx context.Context, role, phoneNumber string) (bool, error) {
	var count int64
	query := h.db.WithContext(ctx)
	if role == database.RoleJobSeeker {
		query = query.Model(&database.CompanyProfile{})
	} else {
		query = query.Model(&database.JobSeekerProfile{})
	}
	if err := query.Where("phone_number = ?", phoneNumber).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type loginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// Login 校验凭证，签发会话令牌并写入 HttpOnly Cookie。
// 响应体里只有账号与资料字段，令牌绝不进入 JSON。
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(
		slog.String("email", req.Email),
	)

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 速率限制：每 IP+邮箱 每小时 N 次。Redis 不可用时放行。
	rateKey := "rate:login:" + ip + ":" + email + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		count = 0
	}
	if h.loginRateLimitPerHour > 0 && count > int64(h.loginRateLimitPerHour) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	// 锁定检查
	lockKey := "lock:login:" + email
	if ttl, _ := h.redis.TTL(ctx, lockKey).Result(); ttl > 0 {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "account temporarily locked"})
		return
	}

	var account database.Account
	if err := h.db.WithContext(ctx).Where("email = ?", req.Email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: account not found")
			_ = h.incrementLoginFail(ctx, email)
			Error(c, http.StatusUnauthorized, badCredentialsMessage)
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, err.Error())
		return
	}

	if !auth.CheckPasswordHash(req.Password, account.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("account_id", uint64(account.ID)))
		_ = h.incrementLoginFail(ctx, email)
		Error(c, http.StatusUnauthorized, badCredentialsMessage)
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, "lock:login:fail:"+email).Err()

	body, err := accountResponse(ctx, h.db, account)
	if err != nil {
		logger.Error("load profile failed", slog.Any("error", err))
		Internal(c, err.Error())
		return
	}

	token, ttl, err := h.authService.IssueToken(account.ID, account.Role, req.RememberMe)
	if err != nil {
		logger.Error("issue token failed", slog.Any("error", err))
		Internal(c, err.Error())
		return
	}

	h.setSessionCookie(c, token, ttl)
	logger.Info("login succeeded",
		slog.Uint64("account_id", uint64(account.ID)),
		slog.Bool("remember_me", req.RememberMe),
	)
	c.JSON(http.StatusOK, body)
}

// Logout 清除会话 Cookie，无条件成功。
func (h *AuthHandler) Logout(c *gin.Context) {
	stdhttp.SetCookie(c.Writer, &stdhttp.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: stdhttp.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
	})
	c.Status(http.StatusOK)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	stdhttp.SetCookie(c.Writer, &stdhttp.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: stdhttp.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
		Expires:  time.Now().Add(ttl),
	})
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func (h *AuthHandler) isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}

func (h *AuthHandler) getCookieDomain() string { return strings.TrimSpace(h.cookieDomain) }

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	failKey := "lock:login:fail:" + email
	count, err := h.redis.Incr(ctx, failKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		_ = h.redis.Expire(ctx, failKey, h.loginLockTTL).Err()
	}
	if h.loginLockThreshold > 0 && count >= int64(h.loginLockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+email, "1", h.loginLockTTL).Err()
	}
	return nil
}
