package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"jobBoard/internal/auth"
	"jobBoard/internal/config"
	"jobBoard/internal/database"
)

type fakeStorage struct {
	uploaded map[string][]byte

	deleted []string

	presign map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		uploaded: map[string][]byte{},
		presign:  map[string]string{},
	}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	if v, ok := s.presign[objectKey]; ok {
		return v, nil
	}
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

// newTestDB 为每个测试开一个独立命名的共享内存 SQLite，互不串库。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&database.Account{},
		&database.JobSeekerProfile{},
		&database.CompanyProfile{},
		&database.JobPost{},
		&database.Application{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	svc, err := auth.NewAuthService("test-secret", 24*time.Hour, 168*time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

// newDeadRedis 返回一个指向不可达地址的客户端。
// 依赖 Redis 的路径在其不可用时必须放行，测试靠这一点跑通。
func newDeadRedis(t *testing.T) *redis.Client {
	t.Helper()
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter 用完整路由表组装一个测试引擎，
// 受保护路由表的行为（包括故意缺守卫的路由）与线上一致。
func newTestRouter(t *testing.T, db *gorm.DB, svc *auth.AuthService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Auth.LoginRateLimitPerHour = 10
	cfg.Auth.LoginLockThreshold = 5
	cfg.Auth.LoginLockTTLMinutes = 15

	router := gin.New()
	RegisterRoutes(router, cfg, db, nil, svc, newDeadRedis(t), discardLogger(), newFakeStorage())
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: cookie})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func seedEmployer(t *testing.T, db *gorm.DB, email, phone, company string) (database.Account, database.CompanyProfile) {
	t.Helper()
	hashed, err := auth.HashPassword("employer-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := database.Account{Email: email, PasswordHash: hashed, Role: database.RoleEmployer}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seed employer account: %v", err)
	}
	profile := database.CompanyProfile{
		AccountID:   account.ID,
		CompanyName: company,
		Industry:    "software",
		Size:        "11-50",
		PhoneNumber: phone,
		Address:     "1 Main St",
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("seed company profile: %v", err)
	}
	return account, profile
}

func seedJobSeeker(t *testing.T, db *gorm.DB, email, phone string) (database.Account, database.JobSeekerProfile) {
	t.Helper()
	hashed, err := auth.HashPassword("seeker-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := database.Account{Email: email, PasswordHash: hashed, Role: database.RoleJobSeeker}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seed job seeker account: %v", err)
	}
	profile := database.JobSeekerProfile{
		AccountID:   account.ID,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		PhoneNumber: phone,
		Address:     "2 Side St",
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("seed job seeker profile: %v", err)
	}
	return account, profile
}

func seedJobPost(t *testing.T, db *gorm.DB, employer database.Account, profile database.CompanyProfile, state string, deadline time.Time) database.JobPost {
	t.Helper()
	post := database.JobPost{
		EmployerAccountID: employer.ID,
		EmployerProfileID: profile.ID,
		Title:             "Backend Engineer",
		Description:       "Go services",
		Location:          "Remote",
		EmploymentType:    "full-time",
		SalaryMin:         50000,
		SalaryMax:         90000,
		Deadline:          deadline,
		State:             state,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed job post: %v", err)
	}
	return post
}

func issueSession(t *testing.T, svc *auth.AuthService, account database.Account) string {
	t.Helper()
	token, _, err := svc.IssueToken(account.ID, account.Role, false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}
