package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReplenishReport generates the daily replenishment report.
	TaskReplenishReport = "replenish:report"
	// TaskUsageRefresh recomputes rolling usage statistics.
	TaskUsageRefresh = "ledger:usage_refresh"
	// TaskLedgerVerify checks the balance projection against the ledger.
	TaskLedgerVerify = "ledger:verify"
	// TaskUnmappedCleanup prunes resolved triage items past retention.
	TaskUnmappedCleanup = "intake:unmapped_cleanup"
)

// ScheduledPayload carries scheduling metadata shared by cron tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewScheduledTask constructs an Asynq task of the given type.
func NewScheduledTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}
