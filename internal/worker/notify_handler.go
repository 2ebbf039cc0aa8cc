package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
	"jobBoard/internal/tasks"
)

// NotifyTaskHandler 消费投递通知任务：读取投递记录并把通知
// 发布到对应雇主的 Redis 频道。
type NotifyTaskHandler struct {
	db          *gorm.DB
	redisClient redis.UniversalClient
	logger      *slog.Logger
}

// NewNotifyTaskHandler 构造 NotifyTaskHandler。
func NewNotifyTaskHandler(db *gorm.DB, redisClient redis.UniversalClient, logger *slog.Logger) *NotifyTaskHandler {
	return &NotifyTaskHandler{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
// 投递或职位已被删除时不重试（返回 nil），系统性错误交给 asynq 重试。
func (h *NotifyTaskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload tasks.ApplicationNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal notify payload: %w", err)
	}

	logger := h.logger.With(
		slog.Uint64("application_id", uint64(payload.ApplicationID)),
		slog.String("correlation_id", payload.CorrelationID),
	)

	var application database.Application
	err := h.db.WithContext(ctx).
		Preload("JobPost").
		Preload("JobSeekerProfile").
		First(&application, payload.ApplicationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 记录已经不在了，重试没有意义。
			logger.Warn("application vanished before notify",
				slog.Int("error_code", errcode.ResourceMissing),
			)
			return nil
		}
		return fmt.Errorf("load application %d: %w", payload.ApplicationID, err)
	}

	message := ApplicationNotifyMessage{
		Type:          notifyMessageType,
		ApplicationID: application.ID,
		JobPostID:     application.JobPostID,
		JobPostTitle:  application.JobPost.Title,
		ApplicantName: application.JobSeekerProfile.FirstName + " " + application.JobSeekerProfile.LastName,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notify message: %w", err)
	}

	channel := EmployerNotifyChannel(application.JobPost.EmployerAccountID)
	if err := h.redisClient.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish notify message: %w", err)
	}

	logger.Info("employer notified",
		slog.String("channel", channel),
		slog.Uint64("job_post_id", uint64(application.JobPostID)),
	)
	return nil
}
