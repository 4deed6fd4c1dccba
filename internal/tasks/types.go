package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeGroupSync     = "sync:group"
	TypeAddonReload   = "sync:addon_reload"
	TypeSchedulerTick = "scheduler:tick"
)

// GroupSyncPayload contains the data for a group sync task
type GroupSyncPayload struct {
	GroupID   uuid.UUID `json:"group_id"`
	AccountID uuid.UUID `json:"account_id"`
	Mode      string    `json:"mode"`
	Source    string    `json:"source,omitempty"`
}

// NewGroupSyncTask builds a group sync task. The task ID is derived from the
// group so the same group is never queued, and therefore never processed,
// twice concurrently; that serializes syncs per user as well since a user's
// collection is only written from their group's sync.
func NewGroupSyncTask(payload GroupSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGroupSync, data,
		asynq.TaskID(fmt.Sprintf("sync:group:%s", payload.GroupID)),
	), nil
}

// AddonReloadPayload contains the data for an addon reload task
type AddonReloadPayload struct {
	AddonID   uuid.UUID `json:"addon_id"`
	AccountID uuid.UUID `json:"account_id"`
}

func NewAddonReloadTask(payload AddonReloadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAddonReload, data), nil
}

// SchedulerTickPayload is empty - the tick checks all accounts
type SchedulerTickPayload struct{}

func NewSchedulerTickTask() *asynq.Task {
	return asynq.NewTask(TypeSchedulerTick, nil)
}
