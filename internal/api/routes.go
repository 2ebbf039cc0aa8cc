package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/auth"
	"jobBoard/internal/config"
)

// guardedRoutes 列出必须携带有效会话 Cookie 的路由（"METHOD path"）。
// 故意不在表里的：PUT /v1/jobposts/:id 与 PUT /v1/profile —— 线上
// 行为就是不拦，这里把这个缺口收敛成一张可审计的表，而不是散落在
// 各个 handler 里。
var guardedRoutes = map[string]bool{
	"POST /v1/jobposts":                 true,
	"DELETE /v1/jobposts/:id":           true,
	"POST /v1/jobposts/:id/apply":       true,
	"GET /v1/jobposts/:id/applications": true,
	"GET /v1/applications/mine":         true,
	"GET /v1/me":                        true,
	"POST /v1/assets/upload":            true,
	"GET /v1/assets/view":               true,
}

// RegisterRoutes 注册 API 路由。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	storageClient ObjectStorage,
) {
	authHandler := NewAuthHandler(
		db,
		authService,
		redisClient,
		logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL(),
		cfg.API.CookieDomain,
	)
	profileHandler := NewProfileHandler(db, authService, storageClient, logger)
	jobPostHandler := NewJobPostHandler(db, authService, logger)
	applicationHandler := NewApplicationHandler(db, asynqClient, logger)
	assetHandler := NewAssetHandler(db, storageClient, logger, cfg.Clamd.Addr)
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.AllowedOrigins)

	sessionGuard := middleware.SessionMiddleware(authService)

	v1 := router.Group("/v1")

	// handle 按 guardedRoutes 决定是否前置会话中间件。
	handle := func(method, path string, handlers ...gin.HandlerFunc) {
		if guardedRoutes[method+" "+v1.BasePath()+path] {
			handlers = append([]gin.HandlerFunc{sessionGuard}, handlers...)
		}
		v1.Handle(method, path, handlers...)
	}

	handle("GET", "/ws", wsHandler.HandleConnection)

	handle("POST", "/auth/register", authHandler.Register)
	handle("POST", "/auth/login", authHandler.Login)
	handle("POST", "/auth/logout", authHandler.Logout)

	handle("GET", "/me", profileHandler.GetMe)
	handle("PUT", "/profile", profileHandler.UpdateProfile)

	handle("GET", "/jobposts", jobPostHandler.ListJobPosts)
	handle("POST", "/jobposts", jobPostHandler.CreateJobPost)
	handle("GET", "/jobposts/:id", jobPostHandler.GetJobPost)
	handle("PUT", "/jobposts/:id", jobPostHandler.UpdateJobPost)
	handle("DELETE", "/jobposts/:id", jobPostHandler.DeleteJobPost)

	handle("POST", "/jobposts/:id/apply", applicationHandler.Apply)
	handle("GET", "/jobposts/:id/applications", applicationHandler.ListForJobPost)
	handle("GET", "/applications/mine", applicationHandler.ListMine)

	handle("POST", "/assets/upload", assetHandler.UploadAsset)
	handle("GET", "/assets/view", assetHandler.GetAssetURL)
}
