package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"jobBoard/internal/auth"
	"jobBoard/internal/database"
	"jobBoard/internal/storage"
)

// ProfileHandler 负责账号资料的读取与更新。
type ProfileHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
	storage     ObjectStorage
	logger      *slog.Logger
}

// NewProfileHandler 构造 ProfileHandler。
func NewProfileHandler(db *gorm.DB, authService *auth.AuthService, storageClient ObjectStorage, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		db:          db,
		authService: authService,
		storage:     storageClient,
		logger:      logger,
	}
}

// accountSummary 是两种账号响应共有的字段。密码哈希永远不进入响应。
type accountSummary struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// jobSeekerAccount / employerAccount 组成一个显式的类型化联合，
// 取代按角色动态合并账号与资料文档的做法。
type jobSeekerAccount struct {
	accountSummary
	FirstName       string         `json:"firstName"`
	LastName        string         `json:"lastName"`
	PhoneNumber     string         `json:"phoneNumber"`
	Address         string         `json:"address"`
	ResumeObjectKey string         `json:"resumeObjectKey,omitempty"`
	Links           datatypes.JSON `json:"links,omitempty"`
}

type employerAccount struct {
	accountSummary
	CompanyName   string `json:"companyName"`
	Industry      string `json:"industry"`
	Size          string `json:"size"`
	PhoneNumber   string `json:"phoneNumber"`
	Address       string `json:"address"`
	About         string `json:"about,omitempty"`
	LogoObjectKey string `json:"logoObjectKey,omitempty"`
}

func newAccountSummary(account database.Account) accountSummary {
	return accountSummary{
		ID:        account.ID,
		Email:     account.Email,
		Role:      account.Role,
		CreatedAt: account.CreatedAt,
	}
}

// accountResponse 按角色加载资料并返回对应的联合体成员。
// admin 账号没有资料记录，只返回公共字段。
func accountResponse(ctx context.Context, db *gorm.DB, account database.Account) (any, error) {
	switch account.Role {
	case database.RoleJobSeeker:
		var profile database.JobSeekerProfile
		if err := db.WithContext(ctx).Where("account_id = ?", account.ID).First(&profile).Error; err != nil {
			return nil, err
		}
		return jobSeekerAccount{
			accountSummary:  newAccountSummary(account),
			FirstName:       profile.FirstName,
			LastName:        profile.LastName,
			PhoneNumber:     profile.PhoneNumber,
			Address:         profile.Address,
			ResumeObjectKey: profile.ResumeObjectKey,
			Links:           profile.Links,
		}, nil
	case database.RoleEmployer:
		var profile database.CompanyProfile
		if err := db.WithContext(ctx).Where("account_id = ?", account.ID).First(&profile).Error; err != nil {
			return nil, err
		}
		return employerAccount{
			accountSummary: newAccountSummary(account),
			CompanyName:    profile.CompanyName,
			Industry:       profile.Industry,
			Size:           profile.Size,
			PhoneNumber:    profile.PhoneNumber,
			Address:        profile.Address,
			About:          profile.About,
			LogoObjectKey:  profile.LogoObjectKey,
		}, nil
	default:
		return newAccountSummary(account), nil
	}
}

// GetMe 返回当前会话对应的账号与资料。
func (h *ProfileHandler) GetMe(c *gin.Context) {
	accountID, _, ok := sessionIdentity(c, h.authService)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var account database.Account
	if err := h.db.WithContext(ctx).First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c)
			return
		}
		Internal(c, err.Error())
		return
	}

	body, err := accountResponse(ctx, h.db, account)
	if err != nil {
		Internal(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, body)
}

type updateProfileRequest struct {
	// 求职者字段
	FirstName *string        `json:"firstName"`
	LastName  *string        `json:"lastName"`
	Links     datatypes.JSON `json:"links"`

	// 雇主字段
	Industry *string `json:"industry"`
	Size     *string `json:"size"`
	About    *string `json:"about"`

	// 共用字段
	PhoneNumber *string `json:"phoneNumber"`
	Address     *string `json:"address"`
}

// UpdateProfile 对调用者的资料做字段级合并更新。
// 注意：该路由不在受保护路由表里（见 routes.go），身份在这里自行解析。
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	accountID, role, ok := sessionIdentity(c, h.authService)
	if !ok {
		Unauthorized(c)
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.logger
	if logger == nil {
		logger = slog.Default()
	}

	updates := map[string]any{}
	setIf := func(column string, value *string) {
		if value != nil {
			updates[column] = *value
		}
	}
	setIf("phone_number", req.PhoneNumber)
	setIf("address", req.Address)

	switch role {
	case database.RoleJobSeeker:
		setIf("first_name", req.FirstName)
		setIf("last_name", req.LastName)
		if req.Links != nil {
			updates["links"] = req.Links
		}

		var profile database.JobSeekerProfile
		if err := h.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
			h.profileLookupError(c, err)
			return
		}
		if len(updates) == 0 {
			BadRequest(c, "no fields to update")
			return
		}
		if err := h.db.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				Conflict(c, "phone number already used")
				return
			}
			Internal(c, err.Error())
			return
		}
	case database.RoleEmployer:
		setIf("industry", req.Industry)
		setIf("size", req.Size)
		setIf("about", req.About)

		var profile database.CompanyProfile
		if err := h.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
			h.profileLookupError(c, err)
			return
		}
		if len(updates) == 0 {
			BadRequest(c, "no fields to update")
			return
		}
		if err := h.db.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				Conflict(c, "phone number already used")
				return
			}
			Internal(c, err.Error())
			return
		}
	default:
		Forbidden(c, "no profile for this role")
		return
	}

	var account database.Account
	if err := h.db.WithContext(ctx).First(&account, accountID).Error; err != nil {
		Internal(c, err.Error())
		return
	}
	body, err := accountResponse(ctx, h.db, account)
	if err != nil {
		Internal(c, err.Error())
		return
	}

	logger.Info("profile updated", slog.Uint64("account_id", uint64(accountID)))
	c.JSON(http.StatusOK, body)
}

func (h *ProfileHandler) profileLookupError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "profile not found")
		return
	}
	Internal(c, err.Error())
}

// replaceResumeObject 把新的简历对象写入资料，并尽力删除旧对象。
// 对象已不存在时不算错误。
func replaceResumeObject(ctx context.Context, db *gorm.DB, store ObjectStorage, profile *database.JobSeekerProfile, objectKey string, logger *slog.Logger) error {
	old := profile.ResumeObjectKey
	if err := db.WithContext(ctx).Model(profile).Update("resume_object_key", objectKey).Error; err != nil {
		return err
	}
	if old != "" && old != objectKey {
		if err := store.DeleteObject(ctx, old); err != nil && !storage.IsNoSuchKey(err) {
			logger.Warn("delete replaced resume object failed",
				slog.String("object_key", old),
				slog.Any("error", err),
			)
		}
	}
	return nil
}
