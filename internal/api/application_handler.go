package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/database"
	"jobBoard/internal/tasks"
)

// ApplicationHandler 负责投递记录的创建与查询。
type ApplicationHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	logger      *slog.Logger
}

// NewApplicationHandler 构造 ApplicationHandler。
func NewApplicationHandler(db *gorm.DB, asynqClient *asynq.Client, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		db:          db,
		asynqClient: asynqClient,
		logger:      logger,
	}
}

type applyRequest struct {
	CoverNote string `json:"coverNote"`
}

type applicationResponse struct {
	ID                 uint      `json:"id"`
	JobSeekerProfileID uint      `json:"jobSeekerProfileId"`
	JobPostID          uint      `json:"jobOfferId"`
	EmployerProfileID  uint      `json:"employerProfileId"`
	CoverNote          string    `json:"coverNote,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func newApplicationResponse(app database.Application) applicationResponse {
	return applicationResponse{
		ID:                 app.ID,
		JobSeekerProfileID: app.JobSeekerProfileID,
		JobPostID:          app.JobPostID,
		EmployerProfileID:  app.EmployerProfileID,
		CoverNote:          app.CoverNote,
		CreatedAt:          app.CreatedAt,
	}
}

// Apply 为当前求职者创建一条投递记录，创建后不可修改。
// 只能投递 Published 且截止日期未过的职位，一个职位只能投一次。
func (h *ApplicationHandler) Apply(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	role, _ := middleware.RoleFromContext(c)
	if role != database.RoleJobSeeker {
		Forbidden(c, "job seeker account required")
		return
	}

	postID, err := jobPostIDParam(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	var req applyRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(
		slog.Uint64("account_id", uint64(accountID)),
		slog.Uint64("job_post_id", uint64(postID)),
	)

	var profile database.JobSeekerProfile
	if err := h.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Forbidden(c, "job seeker profile required")
			return
		}
		Internal(c, err.Error())
		return
	}

	var post database.JobPost
	if err := h.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job post not found")
			return
		}
		Internal(c, err.Error())
		return
	}
	if post.State != database.JobStatePublished {
		BadRequest(c, "job post is not open for applications")
		return
	}
	if !afterToday(post.Deadline) && post.Deadline.Format(time.DateOnly) != time.Now().Format(time.DateOnly) {
		BadRequest(c, "application deadline has passed")
		return
	}

	application := database.Application{
		JobSeekerProfileID: profile.ID,
		JobPostID:          post.ID,
		EmployerProfileID:  post.EmployerProfileID,
		CoverNote:          req.CoverNote,
	}
	if err := h.db.WithContext(ctx).Create(&application).Error; err != nil {
		if isUniqueViolation(err) {
			Conflict(c, "already applied to this job post")
			return
		}
		Internal(c, err.Error())
		return
	}

	// 投递计数，尽力而为。
	_ = h.db.WithContext(ctx).Model(&post).
		UpdateColumn("applicants", gorm.Expr("applicants + 1")).Error

	h.enqueueNotify(c, application.ID, logger)

	logger.Info("application created", slog.Uint64("application_id", uint64(application.ID)))
	c.JSON(http.StatusCreated, newApplicationResponse(application))
}

// enqueueNotify 把雇主通知任务写入队列。通知是附加能力，
// 入队失败只记日志，不影响投递本身。
func (h *ApplicationHandler) enqueueNotify(c *gin.Context, applicationID uint, logger *slog.Logger) {
	if h.asynqClient == nil {
		return
	}
	task, err := tasks.NewApplicationNotifyTask(applicationID, middleware.GetCorrelationID(c))
	if err != nil {
		logger.Error("build notify task failed", slog.Any("error", err))
		return
	}
	if _, err := h.asynqClient.EnqueueContext(c.Request.Context(), task); err != nil {
		logger.Warn("enqueue notify task failed", slog.Any("error", err))
	}
}

// ListMine 返回当前求职者的全部投递记录。
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var profile database.JobSeekerProfile
	if err := h.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Forbidden(c, "job seeker profile required")
			return
		}
		Internal(c, err.Error())
		return
	}

	var applications []database.Application
	if err := h.db.WithContext(ctx).
		Preload("JobPost").
		Where("job_seeker_profile_id = ?", profile.ID).
		Order("created_at DESC").
		Find(&applications).Error; err != nil {
		Internal(c, err.Error())
		return
	}

	items := make([]gin.H, 0, len(applications))
	for _, app := range applications {
		items = append(items, gin.H{
			"application": newApplicationResponse(app),
			"jobPost":     newJobPostResponse(app.JobPost),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListForJobPost 返回某职位收到的投递，仅限发布它的雇主。
func (h *ApplicationHandler) ListForJobPost(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	postID, err := jobPostIDParam(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var post database.JobPost
	if err := h.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job post not found")
			return
		}
		Internal(c, err.Error())
		return
	}
	if post.EmployerAccountID != accountID {
		Forbidden(c, "not the owner of this job post")
		return
	}

	var applications []database.Application
	if err := h.db.WithContext(ctx).
		Preload("JobSeekerProfile").
		Where("job_post_id = ?", post.ID).
		Order("created_at ASC").
		Find(&applications).Error; err != nil {
		Internal(c, err.Error())
		return
	}

	items := make([]gin.H, 0, len(applications))
	for _, app := range applications {
		items = append(items, gin.H{
			"application": newApplicationResponse(app),
			"applicant": gin.H{
				"firstName":       app.JobSeekerProfile.FirstName,
				"lastName":        app.JobSeekerProfile.LastName,
				"phoneNumber":     app.JobSeekerProfile.PhoneNumber,
				"resumeObjectKey": app.JobSeekerProfile.ResumeObjectKey,
			},
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ApplicationHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
