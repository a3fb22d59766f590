package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/nhatro-erp/nhatro-erp/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendPush is the task type for customer push notifications.
	TaskTypeSendPush = "notify:push"
	// TaskTypeLeaseRefresh re-derives lease statuses from end dates.
	TaskTypeLeaseRefresh = "tenancy:lease_refresh"
)

// NewSendPushTask constructs an Asynq task carrying one push message.
func NewSendPushTask(msg notify.PushMessage) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendPush, data), nil
}

// HandleSendPushTask processes TaskTypeSendPush tasks.
func HandleSendPushTask(ctx context.Context, t *asynq.Task) error {
	var msg notify.PushMessage
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with FCM in phase 2.
	fmt.Printf("[jobs] push to customer %d title=%s\n", msg.CustomerID, msg.Title)
	return nil
}

// NewLeaseRefreshTask constructs the nightly lease status refresh task.
func NewLeaseRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLeaseRefresh, nil)
}
