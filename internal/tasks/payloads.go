package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeApplicationNotify = "application:notify"
)

// ApplicationNotifyPayload 描述通知雇主新投递所需的最小信息。
type ApplicationNotifyPayload struct {
	ApplicationID uint   `json:"application_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewApplicationNotifyTask 构造一个新的投递通知任务。
func NewApplicationNotifyTask(applicationID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ApplicationNotifyPayload{
		ApplicationID: applicationID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeApplicationNotify, payload), nil
}
