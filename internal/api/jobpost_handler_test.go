package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"jobBoard/internal/database"
)

func TestCreateJobPost_RequiresSession(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, db, newTestAuthService(t))

	w := doJSON(t, router, http.MethodPost, "/v1/jobposts", map[string]any{
		"title":    "Backend Engineer",
		"deadline": time.Now().AddDate(0, 0, 7).Format(time.DateOnly),
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&database.JobPost{}).Count(&count)
	if count != 0 {
		t.Fatalf("job post created without a session, count=%d", count)
	}
}

// employerAccountId 必须来自会话令牌，请求体里写什么都不作数。
func TestCreateJobPost_OwnerComesFromSession(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, profile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	token := issueSession(t, svc, employer)

	w := doJSON(t, router, http.MethodPost, "/v1/jobposts", map[string]any{
		"title":             "Backend Engineer",
		"deadline":          time.Now().AddDate(0, 0, 7).Format(time.DateOnly),
		"employerAccountId": 424242,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var post database.JobPost
	if err := db.First(&post).Error; err != nil {
		t.Fatalf("post not created: %v", err)
	}
	if post.EmployerAccountID != employer.ID {
		t.Fatalf("employer account id = %d, want %d", post.EmployerAccountID, employer.ID)
	}
	if post.EmployerProfileID != profile.ID {
		t.Fatalf("employer profile id = %d, want %d", post.EmployerProfileID, profile.ID)
	}
	if post.State != database.JobStateDraft {
		t.Fatalf("expected default state Draft, got %q", post.State)
	}
}

func TestCreateJobPost_JobSeekerForbidden(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	seeker, _ := seedJobSeeker(t, db, "ada@example.com", "+33600000001")
	token := issueSession(t, svc, seeker)

	w := doJSON(t, router, http.MethodPost, "/v1/jobposts", map[string]any{
		"title":    "Backend Engineer",
		"deadline": time.Now().AddDate(0, 0, 7).Format(time.DateOnly),
	}, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}
}

// Draft→In-review 要求截止日期严格晚于今天，今天当天不算。
func TestUpdateJobPost_SubmitWithTodayDeadlineRejected(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, db, newTestAuthService(t))
	employer, profile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	post := seedJobPost(t, db, employer, profile, database.JobStateDraft, time.Now())

	w := doJSON(t, router, http.MethodPut, fmt.Sprintf("/v1/jobposts/%d", post.ID), map[string]any{
		"state": database.JobStateInReview,
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "deadline must be greater than today") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	var reloaded database.JobPost
	if err := db.First(&reloaded, post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if reloaded.State != database.JobStateDraft {
		t.Fatalf("state changed despite rejection: %q", reloaded.State)
	}
}

func TestUpdateJobPost_SubmitWithFutureDeadline(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, db, newTestAuthService(t))
	employer, profile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	post := seedJobPost(t, db, employer, profile, database.JobStateDraft, time.Now())

	// 同一个请求里补上的截止日期按补丁后的值校验。
	w := doJSON(t, router, http.MethodPut, fmt.Sprintf("/v1/jobposts/%d", post.ID), map[string]any{
		"state":    database.JobStateInReview,
		"deadline": time.Now().AddDate(0, 0, 1).Format(time.DateOnly),
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.JobPost
	if err := db.First(&reloaded, post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if reloaded.State != database.JobStateInReview {
		t.Fatalf("expected In-review, got %q", reloaded.State)
	}
}

// 状态机里只有 Draft→In-review 一条边有守卫，其余转换原样放行。
func TestUpdateJobPost_OtherTransitionsUnguarded(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, db, newTestAuthService(t))
	employer, profile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	post := seedJobPost(t, db, employer, profile, database.JobStatePublished, time.Now().AddDate(0, 0, -30))

	w := doJSON(t, router, http.MethodPut, fmt.Sprintf("/v1/jobposts/%d", post.ID), map[string]any{
		"state": database.JobStateClosed,
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.JobPost
	if err := db.First(&reloaded, post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if reloaded.State != database.JobStateClosed {
		t.Fatalf("expected Closed, got %q", reloaded.State)
	}
}

func TestUpdateJobPost_NotFound(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, db, newTestAuthService(t))

	w := doJSON(t, router, http.MethodPut, "/v1/jobposts/9999", map[string]any{
		"title": "Renamed",
	}, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetJobPost_NonPublishedHiddenFromStrangers(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, profile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	post := seedJobPost(t, db, employer, profile, database.JobStateDraft, time.Now().AddDate(0, 0, 7))

	anonymous := doJSON(t, router, http.MethodGet, fmt.Sprintf("/v1/jobposts/%d", post.ID), nil, "")
	if anonymous.Code != http.StatusNotFound {
		t.Fatalf("draft visible to anonymous caller: %d", anonymous.Code)
	}

	owner := doJSON(t, router, http.MethodGet, fmt.Sprintf("/v1/jobposts/%d", post.ID), nil, issueSession(t, svc, employer))
	if owner.Code != http.StatusOK {
		t.Fatalf("draft hidden from its owner: %d body=%s", owner.Code, owner.Body.String())
	}
}

func TestGetJobPost_IncrementsViews(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, db, newTestAuthService(t))
	employer, profile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	post := seedJobPost(t, db, employer, profile, database.JobStatePublished, time.Now().AddDate(0, 0, 7))

	for i := 0; i < 3; i++ {
		w := doJSON(t, router, http.MethodGet, fmt.Sprintf("/v1/jobposts/%d", post.ID), nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("get #%d: %d body=%s", i, w.Code, w.Body.String())
		}
	}

	var reloaded database.JobPost
	if err := db.First(&reloaded, post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if reloaded.Views != 3 {
		t.Fatalf("expected 3 views, got %d", reloaded.Views)
	}
}

// 公开列表只包含 Published 且截止日期未过的职位。
func TestListJobPosts_FiltersStateAndDeadline(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, db, newTestAuthService(t))
	employer, profile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")

	open := seedJobPost(t, db, employer, profile, database.JobStatePublished, time.Now().AddDate(0, 0, 7))
	seedJobPost(t, db, employer, profile, database.JobStatePublished, time.Now().AddDate(0, 0, -7))
	seedJobPost(t, db, employer, profile, database.JobStateDraft, time.Now().AddDate(0, 0, 7))

	w := doJSON(t, router, http.MethodGet, "/v1/jobposts", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected exactly one open post, body=%s", w.Body.String())
	}
	item := items[0].(map[string]any)
	if uint(item["id"].(float64)) != open.ID {
		t.Fatalf("wrong post listed: %v", item)
	}
}

func TestDeleteJobPost_OwnerOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, profile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	other, _ := seedEmployer(t, db, "rival@example.com", "+33600000010", "Rival")
	post := seedJobPost(t, db, employer, profile, database.JobStatePublished, time.Now().AddDate(0, 0, 7))

	stranger := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/v1/jobposts/%d", post.ID), nil, issueSession(t, svc, other))
	if stranger.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", stranger.Code)
	}

	owner := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/v1/jobposts/%d", post.ID), nil, issueSession(t, svc, employer))
	if owner.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d body=%s", owner.Code, owner.Body.String())
	}

	var count int64
	db.Model(&database.JobPost{}).Count(&count)
	if count != 0 {
		t.Fatalf("post still listed after delete, count=%d", count)
	}
}
