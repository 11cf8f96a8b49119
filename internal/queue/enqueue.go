package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueueSchedule registers a precise-time dispatch for a single schedule.
// The cron sweep doubles as a safety net, so a lost task only delays the
// publish, it never loses it.
func EnqueueSchedule(asynqClient *asynq.Client, payload DispatchSchedulePayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDispatchSchedule, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	log.Printf("Dispatch task scheduled: %+v", payload)
	return nil
}
