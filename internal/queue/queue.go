package queue

import (
	"time"

	"github.com/hibiken/asynq"

	"github.com/postpilothq/postpilot/internal/scheduler"
)

const TaskTypeDispatchSchedule = "schedule:dispatch"

type DispatchSchedulePayload struct {
	ScheduleID int64 `json:"schedule_id"`
}

type Queue struct {
	dispatcher *scheduler.Dispatcher
}

func NewQueue(dispatcher *scheduler.Dispatcher) *Queue {
	return &Queue{dispatcher: dispatcher}
}

// Enqueuer adapts the asynq client to the dispatcher's re-arm hook.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueDispatch(scheduleID int64, delay time.Duration) error {
	return EnqueueSchedule(e.client, DispatchSchedulePayload{ScheduleID: scheduleID}, delay)
}
