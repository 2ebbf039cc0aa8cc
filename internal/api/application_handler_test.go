package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"jobBoard/internal/database"
)

func TestApply_CreatesApplication(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, companyProfile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	seeker, seekerProfile := seedJobSeeker(t, db, "ada@example.com", "+33600000001")
	post := seedJobPost(t, db, employer, companyProfile, database.JobStatePublished, time.Now().AddDate(0, 0, 7))

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/jobposts/%d/apply", post.ID), map[string]any{
		"coverNote": "hire me",
	}, issueSession(t, svc, seeker))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var application database.Application
	if err := db.First(&application).Error; err != nil {
		t.Fatalf("application not created: %v", err)
	}
	if application.JobSeekerProfileID != seekerProfile.ID {
		t.Fatalf("seeker profile id = %d, want %d", application.JobSeekerProfileID, seekerProfile.ID)
	}
	if application.JobPostID != post.ID {
		t.Fatalf("job post id = %d, want %d", application.JobPostID, post.ID)
	}
	if application.EmployerProfileID != companyProfile.ID {
		t.Fatalf("employer profile id = %d, want %d", application.EmployerProfileID, companyProfile.ID)
	}
	if application.CoverNote != "hire me" {
		t.Fatalf("cover note = %q", application.CoverNote)
	}

	var reloaded database.JobPost
	if err := db.First(&reloaded, post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if reloaded.Applicants != 1 {
		t.Fatalf("expected applicants=1, got %d", reloaded.Applicants)
	}
}

func TestApply_SecondAttemptConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, companyProfile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	seeker, _ := seedJobSeeker(t, db, "ada@example.com", "+33600000001")
	post := seedJobPost(t, db, employer, companyProfile, database.JobStatePublished, time.Now().AddDate(0, 0, 7))
	token := issueSession(t, svc, seeker)

	path := fmt.Sprintf("/v1/jobposts/%d/apply", post.ID)
	if w := doJSON(t, router, http.MethodPost, path, nil, token); w.Code != http.StatusCreated {
		t.Fatalf("first apply failed: %d %s", w.Code, w.Body.String())
	}

	second := doJSON(t, router, http.MethodPost, path, nil, token)
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", second.Code, second.Body.String())
	}
	if !strings.Contains(second.Body.String(), "already applied") {
		t.Fatalf("unexpected body: %s", second.Body.String())
	}

	var count int64
	db.Model(&database.Application{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one application, got %d", count)
	}
}

func TestApply_EmployerForbidden(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, companyProfile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	post := seedJobPost(t, db, employer, companyProfile, database.JobStatePublished, time.Now().AddDate(0, 0, 7))

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/jobposts/%d/apply", post.ID), nil, issueSession(t, svc, employer))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestApply_DraftPostRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, companyProfile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	seeker, _ := seedJobSeeker(t, db, "ada@example.com", "+33600000001")
	post := seedJobPost(t, db, employer, companyProfile, database.JobStateDraft, time.Now().AddDate(0, 0, 7))

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/jobposts/%d/apply", post.ID), nil, issueSession(t, svc, seeker))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestApply_PastDeadlineRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, companyProfile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	seeker, _ := seedJobSeeker(t, db, "ada@example.com", "+33600000001")
	post := seedJobPost(t, db, employer, companyProfile, database.JobStatePublished, time.Now().AddDate(0, 0, -1))

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/jobposts/%d/apply", post.ID), nil, issueSession(t, svc, seeker))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "deadline") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestListMine_ReturnsOwnApplications(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, companyProfile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	seeker, seekerProfile := seedJobSeeker(t, db, "ada@example.com", "+33600000001")
	_, otherProfile := seedJobSeeker(t, db, "bob@example.com", "+33600000002")
	post := seedJobPost(t, db, employer, companyProfile, database.JobStatePublished, time.Now().AddDate(0, 0, 7))

	for _, profile := range []database.JobSeekerProfile{seekerProfile, otherProfile} {
		app := database.Application{
			JobSeekerProfileID: profile.ID,
			JobPostID:          post.ID,
			EmployerProfileID:  companyProfile.ID,
		}
		if err := db.Create(&app).Error; err != nil {
			t.Fatalf("seed application: %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/v1/applications/mine", nil, issueSession(t, svc, seeker))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected exactly one application, body=%s", w.Body.String())
	}
	item := items[0].(map[string]any)
	jobPost, ok := item["jobPost"].(map[string]any)
	if !ok || uint(jobPost["id"].(float64)) != post.ID {
		t.Fatalf("job post missing from item: %v", item)
	}
}

func TestListForJobPost_OwnerOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(t)
	router := newTestRouter(t, db, svc)
	employer, companyProfile := seedEmployer(t, db, "acme@example.com", "+33600000009", "Acme")
	rival, _ := seedEmployer(t, db, "rival@example.com", "+33600000010", "Rival")
	_, seekerProfile := seedJobSeeker(t, db, "ada@example.com", "+33600000001")
	post := seedJobPost(t, db, employer, companyProfile, database.JobStatePublished, time.Now().AddDate(0, 0, 7))

	app := database.Application{
		JobSeekerProfileID: seekerProfile.ID,
		JobPostID:          post.ID,
		EmployerProfileID:  companyProfile.ID,
	}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	path := fmt.Sprintf("/v1/jobposts/%d/applications", post.ID)
	stranger := doJSON(t, router, http.MethodGet, path, nil, issueSession(t, svc, rival))
	if stranger.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", stranger.Code)
	}

	owner := doJSON(t, router, http.MethodGet, path, nil, issueSession(t, svc, employer))
	if owner.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", owner.Code, owner.Body.String())
	}
	body := decodeBody(t, owner)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one application, body=%s", owner.Body.String())
	}
	applicant, ok := items[0].(map[string]any)["applicant"].(map[string]any)
	if !ok || applicant["firstName"] != "Ada" {
		t.Fatalf("applicant fields missing: %s", owner.Body.String())
	}
}
