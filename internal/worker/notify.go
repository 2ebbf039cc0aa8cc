package worker

import (
	"fmt"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type ApplicationNotifyMessage struct {
	Type          string `json:"type"`
	ApplicationID uint   `json:"application_id"`
	JobPostID     uint   `json:"job_post_id"`
	JobPostTitle  string `json:"job_post_title"`
	ApplicantName string `json:"applicant_name"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

const notifyMessageType = "application"

// EmployerNotifyChannel 返回雇主账号对应的 Redis Pub/Sub 频道名。
// API 侧的 WebSocket 处理器订阅同一个频道。
func EmployerNotifyChannel(employerAccountID uint) string {
	return fmt.Sprintf("employer_notify:%d", employerAccountID)
}
