package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandleDispatchScheduleTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchSchedulePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.dispatcher.ProcessSchedule(ctx, payload.ScheduleID)
}
