package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/auth"
	"jobBoard/internal/database"
)

// JobPostHandler 负责职位的增删改查与生命周期状态变更。
type JobPostHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
	logger      *slog.Logger
}

// NewJobPostHandler 构造 JobPostHandler。
func NewJobPostHandler(db *gorm.DB, authService *auth.AuthService, logger *slog.Logger) *JobPostHandler {
	return &JobPostHandler{
		db:          db,
		authService: authService,
		logger:      logger,
	}
}

var errInvalidJobPostID = errors.New("invalid job post id")

func jobPostIDParam(c *gin.Context) (uint, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errInvalidJobPostID
	}
	return uint(id), nil
}

type createJobPostRequest struct {
	Title          string         `json:"title" binding:"required"`
	Description    string         `json:"description"`
	Location       string         `json:"location"`
	EmploymentType string         `json:"employmentType"`
	SalaryMin      int            `json:"salaryMin"`
	SalaryMax      int            `json:"salaryMax"`
	Extra          datatypes.JSON `json:"extra"`
	Deadline       string         `json:"deadline" binding:"required"`
	State          string         `json:"state"`
}

type jobPostResponse struct {
	ID                uint           `json:"id"`
	EmployerAccountID uint           `json:"employerAccountId"`
	EmployerProfileID uint           `json:"employerProfileId"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Location          string         `json:"location"`
	EmploymentType    string         `json:"employmentType"`
	SalaryMin         int            `json:"salaryMin"`
	SalaryMax         int            `json:"salaryMax"`
	Extra             datatypes.JSON `json:"extra,omitempty"`
	Deadline          string         `json:"deadline"`
	State             string         `json:"state"`
	Views             int64          `json:"views"`
	Applicants        int64          `json:"applicants"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func newJobPostResponse(post database.JobPost) jobPostResponse {
	return jobPostResponse{
		ID:                post.ID,
		EmployerAccountID: post.EmployerAccountID,
		EmployerProfileID: post.EmployerProfileID,
		Title:             post.Title,
		Description:       post.Description,
		Location:          post.Location,
		EmploymentType:    post.EmploymentType,
		SalaryMin:         post.SalaryMin,
		SalaryMax:         post.SalaryMax,
		Extra:             post.Extra,
		Deadline:          post.Deadline.Format(time.DateOnly),
		State:             post.State,
		Views:             post.Views,
		Applicants:        post.Applicants,
		CreatedAt:         post.CreatedAt,
		UpdatedAt:         post.UpdatedAt,
	}
}

// CreateJobPost 创建职位。该路由在受保护路由表里，
// employerAccountId 一律取自会话令牌而非请求体。
func (h *JobPostHandler) CreateJobPost(c *gin.Context) {
	accountID, role, ok := sessionIdentity(c, h.authService)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if role != database.RoleEmployer {
		Forbidden(c, "employer account required")
		return
	}

	var req createJobPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	deadline, err := time.Parse(time.DateOnly, req.Deadline)
	if err != nil {
		BadRequest(c, "invalid deadline, expected YYYY-MM-DD")
		return
	}

	state := req.State
	if state == "" {
		state = database.JobStateDraft
	}
	if !database.ValidJobState(state) {
		BadRequest(c, "invalid state")
		return
	}

	ctx := c.Request.Context()
	var profile database.CompanyProfile
	if err := h.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Forbidden(c, "company profile required")
			return
		}
		Internal(c, err.Error())
		return
	}

	post := database.JobPost{
		EmployerAccountID: accountID,
		EmployerProfileID: profile.ID,
		Title:             req.Title,
		Description:       req.Description,
		Location:          req.Location,
		EmploymentType:    req.EmploymentType,
		SalaryMin:         req.SalaryMin,
		SalaryMax:         req.SalaryMax,
		Extra:             req.Extra,
		Deadline:          deadline,
		State:             state,
	}
	if err := h.db.WithContext(ctx).Create(&post).Error; err != nil {
		Internal(c, err.Error())
		return
	}

	h.loggerFromContext(c).Info("job post created",
		slog.Uint64("job_post_id", uint64(post.ID)),
		slog.Uint64("employer_account_id", uint64(accountID)),
	)
	c.JSON(http.StatusCreated, newJobPostResponse(post))
}

type updateJobPostRequest struct {
	Title          *string        `json:"title"`
	Description    *string        `json:"description"`
	Location       *string        `json:"location"`
	EmploymentType *string        `json:"employmentType"`
	SalaryMin      *int           `json:"salaryMin"`
	SalaryMax      *int           `json:"salaryMax"`
	Extra          datatypes.JSON `json:"extra"`
	Deadline       *string        `json:"deadline"`
	State          *string        `json:"state"`
}

// UpdateJobPost 对职位做部分更新。生命周期状态机里只有
// Draft→In-review 一条边带校验；其余转换按观察到的行为原样放行。
// 注意：该路由不在受保护路由表里（见 routes.go）。
func (h *JobPostHandler) UpdateJobPost(c *gin.Context) {
	id, err := jobPostIDParam(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	var req updateJobPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var deadline *time.Time
	if req.Deadline != nil {
		parsed, err := time.Parse(time.DateOnly, *req.Deadline)
		if err != nil {
			BadRequest(c, "invalid deadline, expected YYYY-MM-DD")
			return
		}
		deadline = &parsed
	}
	if req.State != nil && !database.ValidJobState(*req.State) {
		BadRequest(c, "invalid state")
		return
	}

	ctx := c.Request.Context()
	var post database.JobPost
	if err := h.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job post not found")
			return
		}
		Internal(c, err.Error())
		return
	}

	if msg, ok := checkStateTransition(post, req.State, deadline); !ok {
		BadRequest(c, msg)
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.EmploymentType != nil {
		updates["employment_type"] = *req.EmploymentType
	}
	if req.SalaryMin != nil {
		updates["salary_min"] = *req.SalaryMin
	}
	if req.SalaryMax != nil {
		updates["salary_max"] = *req.SalaryMax
	}
	if req.Extra != nil {
		updates["extra"] = req.Extra
	}
	if deadline != nil {
		updates["deadline"] = *deadline
	}
	if req.State != nil {
		updates["state"] = *req.State
	}
	if len(updates) == 0 {
		BadRequest(c, "no fields to update")
		return
	}

	if err := h.db.WithContext(ctx).Model(&post).Updates(updates).Error; err != nil {
		Internal(c, err.Error())
		return
	}

	h.loggerFromContext(c).Info("job post updated",
		slog.Uint64("job_post_id", uint64(post.ID)),
		slog.String("state", post.State),
	)
	c.JSON(http.StatusOK, newJobPostResponse(post))
}

// checkStateTransition 是状态机里唯一带守卫的边：
// Draft→In-review 要求生效截止日期（请求里给出的值，否则取库里的）
// 严格晚于今天（按天粒度）。其余任意转换（含自环）一律放行。
func checkStateTransition(post database.JobPost, requestedState *string, requestedDeadline *time.Time) (string, bool) {
	if requestedState == nil {
		return "", true
	}
	if post.State != database.JobStateDraft || *requestedState != database.JobStateInReview {
		return "", true
	}

	effective := post.Deadline
	if requestedDeadline != nil {
		effective = *requestedDeadline
	}
	if !afterToday(effective) {
		return "deadline must be greater than today", false
	}
	return "", true
}

// GetJobPost 返回单个职位并累加浏览数。
// 非 Published 状态只有发布它的雇主能看到。
func (h *JobPostHandler) GetJobPost(c *gin.Context) {
	id, err := jobPostIDParam(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var post database.JobPost
	if err := h.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job post not found")
			return
		}
		Internal(c, err.Error())
		return
	}

	if post.State != database.JobStatePublished {
		accountID, _, ok := sessionIdentity(c, h.authService)
		if !ok || accountID != post.EmployerAccountID {
			NotFound(c, "job post not found")
			return
		}
	}

	// 浏览计数，尽力而为，失败不影响响应。
	if err := h.db.WithContext(ctx).Model(&post).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err == nil {
		post.Views++
	}

	c.JSON(http.StatusOK, newJobPostResponse(post))
}

type jobPostListResponse struct {
	Items    []jobPostResponse `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ListJobPosts 返回公开职位列表：仅 Published 且截止日期未过，
// 支持分页与按标题、地点、用工类型过滤。
func (h *JobPostHandler) ListJobPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	ctx := c.Request.Context()
	query := h.db.WithContext(ctx).Model(&database.JobPost{}).
		Where("state = ?", database.JobStatePublished).
		Where("deadline >= ?", startOfToday())

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		query = query.Where("title LIKE ?", "%"+q+"%")
	}
	if location := strings.TrimSpace(c.Query("location")); location != "" {
		query = query.Where("location = ?", location)
	}
	if employmentType := strings.TrimSpace(c.Query("employment_type")); employmentType != "" {
		query = query.Where("employment_type = ?", employmentType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		Internal(c, err.Error())
		return
	}

	var posts []database.JobPost
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error; err != nil {
		Internal(c, err.Error())
		return
	}

	items := make([]jobPostResponse, 0, len(posts))
	for _, post := range posts {
		items = append(items, newJobPostResponse(post))
	}
	c.JSON(http.StatusOK, jobPostListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// DeleteJobPost 删除职位，仅限发布它的雇主。
func (h *JobPostHandler) DeleteJobPost(c *gin.Context) {
	id, err := jobPostIDParam(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	accountID, _, ok := sessionIdentity(c, h.authService)
	if !ok {
		Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var post database.JobPost
	if err := h.db.WithContext(ctx).First(&post, id).Error; err != nil {
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

	if err := h.db.WithContext(ctx).Delete(&post).Error; err != nil {
		Internal(c, err.Error())
		return
	}

	h.loggerFromContext(c).Info("job post deleted", slog.Uint64("job_post_id", uint64(post.ID)))
	c.Status(http.StatusNoContent)
}

func (h *JobPostHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
