package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/database"
)

// ObjectStorage 抽象对象存储操作，便于测试替换。
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// 上传种类：求职者简历或公司 Logo。
const (
	assetKindResume = "resume"
	assetKindLogo   = "logo"
)

const maxUploadBytes = 5 * 1024 * 1024

var assetMIMEWhitelist = map[string][]string{
	assetKindResume: {"application/pdf"},
	assetKindLogo:   {"image/png", "image/jpeg"},
}

// AssetHandler 负责文件上传与访问。文件本身完全托管在对象存储，
// 数据库只保存 objectKey。
type AssetHandler struct {
	db        *gorm.DB
	Storage   ObjectStorage
	Logger    *slog.Logger
	ClamdAddr string
}

// NewAssetHandler 返回 AssetHandler 实例。
func NewAssetHandler(db *gorm.DB, storageClient ObjectStorage, logger *slog.Logger, clamdAddr string) *AssetHandler {
	return &AssetHandler{
		db:        db,
		Storage:   storageClient,
		Logger:    logger,
		ClamdAddr: clamdAddr,
	}
}

// UploadAsset 处理受保护的文件上传：求职者传简历（PDF），
// 雇主传公司 Logo。上传前先过 clamd 扫描（未配置地址则跳过）。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	role, _ := middleware.RoleFromContext(c)

	kind := strings.TrimSpace(c.DefaultPostForm("kind", assetKindResume))
	if kind != assetKindResume && kind != assetKindLogo {
		BadRequest(c, "invalid kind")
		return
	}
	if kind == assetKindResume && role != database.RoleJobSeeker {
		Forbidden(c, "job seeker account required")
		return
	}
	if kind == assetKindLogo && role != database.RoleEmployer {
		Forbidden(c, "employer account required")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxUploadBytes {
		BadRequest(c, "file too large")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !mimeAllowed(kind, contentType) {
		BadRequest(c, "unsupported content type")
		return
	}

	if h.ClamdAddr != "" {
		if err := h.scanUpload(file); err != nil {
			if errors.Is(err, errMaliciousFile) {
				BadRequest(c, "malicious file detected")
				return
			}
			h.logger().Error("scan file", slog.String("error", err.Error()))
			Internal(c, err.Error())
			return
		}
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer fileReader.Close()

	objectKey := fmt.Sprintf("user-assets/%d/%s%s", accountID, uuid.NewString(), extensionFor(kind, contentType))
	if _, err := h.Storage.UploadFile(c.Request.Context(), objectKey, fileReader, file.Size, contentType); err != nil {
		h.logger().Error("upload file", slog.String("error", err.Error()))
		Internal(c, err.Error())
		return
	}

	if err := h.attachToProfile(c, accountID, kind, objectKey); err != nil {
		Internal(c, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

var errMaliciousFile = errors.New("malicious file detected")

func (h *AssetHandler) scanUpload(file *multipart.FileHeader) error {
	fileReader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	clamdClient := clamd.NewClamd(h.ClamdAddr)
	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
	fileReader.Close()
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return errMaliciousFile
		}
	}
	return nil
}

// attachToProfile 把上传结果写回对应资料，简历被替换时顺带清理旧对象。
func (h *AssetHandler) attachToProfile(c *gin.Context, accountID uint, kind, objectKey string) error {
	ctx := c.Request.Context()
	switch kind {
	case assetKindResume:
		var profile database.JobSeekerProfile
		if err := h.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
			return err
		}
		return replaceResumeObject(ctx, h.db, h.Storage, &profile, objectKey, h.logger())
	case assetKindLogo:
		var profile database.CompanyProfile
		if err := h.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
			return err
		}
		return h.db.WithContext(ctx).Model(&profile).Update("logo_object_key", objectKey).Error
	}
	return nil
}

// GetAssetURL 返回资产的临时预签名 URL，只允许访问自己前缀下的对象。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if !isValidUserAssetObjectKey(accountID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.Storage.GeneratePresignedURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		h.logger().Error("generate presigned url", slog.String("error", err.Error()))
		Internal(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func mimeAllowed(kind, contentType string) bool {
	for _, allowed := range assetMIMEWhitelist[kind] {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func extensionFor(kind, contentType string) string {
	if kind == assetKindResume {
		return ".pdf"
	}
	if strings.EqualFold(contentType, "image/jpeg") {
		return ".jpg"
	}
	return ".png"
}

func (h *AssetHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
