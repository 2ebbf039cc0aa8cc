package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 账号角色。注册接口只接受 jobseeker/employer，admin 由 cmd/admin 播种。
const (
	RoleJobSeeker = "jobseeker"
	RoleEmployer  = "employer"
	RoleAdmin     = "admin"
)

// 职位生命周期状态。仅 Draft→In-review 这一条边带截止日期校验。
const (
	JobStateDraft     = "Draft"
	JobStateInReview  = "In-review"
	JobStatePublished = "Published"
	JobStateRejected  = "Rejected"
	JobStateClosed    = "Closed"
	JobStatePaused    = "Paused"
)

// ValidJobState 判断给定字符串是否为已知的职位状态。
func ValidJobState(s string) bool {
	switch s {
	case JobStateDraft, JobStateInReview, JobStatePublished,
		JobStateRejected, JobStateClosed, JobStatePaused:
		return true
	}
	return false
}

// Account 表示系统中的凭证记录：邮箱、密码哈希与角色。
type Account struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string `gorm:"size:255"`
	Role         string `gorm:"size:32;index"`
}

// JobSeekerProfile 表示求职者资料，与 Account 一对一绑定。
type JobSeekerProfile struct {
	gorm.Model
	AccountID       uint    `gorm:"uniqueIndex"`
	Account         Account `gorm:"constraint:OnDelete:CASCADE"`
	FirstName       string  `gorm:"size:128"`
	LastName        string  `gorm:"size:128"`
	PhoneNumber     string  `gorm:"uniqueIndex;size:32"`
	Address         string  `gorm:"size:512"`
	ResumeObjectKey string  `gorm:"size:512"`
	// Links 存放求职者自填的外部链接（GitHub、作品集等）。
	Links datatypes.JSON `gorm:"type:jsonb"`
}

// CompanyProfile 表示雇主/公司资料，与 Account 一对一绑定。
type CompanyProfile struct {
	gorm.Model
	AccountID     uint    `gorm:"uniqueIndex"`
	Account       Account `gorm:"constraint:OnDelete:CASCADE"`
	CompanyName   string  `gorm:"uniqueIndex;size:255"`
	Industry      string  `gorm:"size:128"`
	Size          string  `gorm:"size:64"`
	PhoneNumber   string  `gorm:"uniqueIndex;size:32"`
	Address       string  `gorm:"size:512"`
	About         string  `gorm:"size:4000"`
	LogoObjectKey string  `gorm:"size:512"`
}

// JobPost 表示职位信息。Deadline 与 State 共同决定对求职者的可见性。
type JobPost struct {
	gorm.Model
	EmployerAccountID uint   `gorm:"index"`
	EmployerProfileID uint   `gorm:"index"`
	Title             string `gorm:"size:255"`
	Description       string `gorm:"size:8000"`
	Location          string `gorm:"size:255"`
	EmploymentType    string `gorm:"size:64"`
	SalaryMin         int
	SalaryMax         int
	// Extra 存放前端自定义的附加字段（福利、技能标签等）。
	Extra      datatypes.JSON `gorm:"type:jsonb"`
	Deadline   time.Time      `gorm:"type:date"`
	State      string         `gorm:"size:32;index"`
	Views      int64
	Applicants int64
}

// Application 表示求职者对某个职位的投递记录，创建后不可修改。
type Application struct {
	gorm.Model
	JobSeekerProfileID uint             `gorm:"index;uniqueIndex:idx_seeker_post"`
	JobSeekerProfile   JobSeekerProfile `gorm:"constraint:OnDelete:CASCADE"`
	JobPostID          uint             `gorm:"index;uniqueIndex:idx_seeker_post"`
	JobPost            JobPost          `gorm:"constraint:OnDelete:CASCADE"`
	EmployerProfileID  uint             `gorm:"index"`
	CoverNote          string           `gorm:"size:4000"`
}
