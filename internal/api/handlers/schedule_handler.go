package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/postpilothq/postpilot/internal/queue"
	"github.com/postpilothq/postpilot/internal/service"
	"github.com/postpilothq/postpilot/internal/transfer"
)

type ScheduleHandler struct {
	s           service.ScheduleService
	AsynqClient *asynq.Client
}

func NewScheduleHandler(service service.ScheduleService, asynqClient *asynq.Client) *ScheduleHandler {
	return &ScheduleHandler{s: service, AsynqClient: asynqClient}
}

func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.ScheduleCreation
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	schedule, delay, err := h.s.Create(c.Context(), userID, &req)
	if err != nil {
		return ErrorResponse(c, err)
	}

	err = queue.EnqueueSchedule(h.AsynqClient, queue.DispatchSchedulePayload{ScheduleID: schedule.ID}, delay)
	if err != nil {
		// The cron sweep will still pick the schedule up at its due time.
		return c.Status(fiber.StatusOK).JSON(schedule)
	}

	return c.Status(fiber.StatusOK).JSON(schedule)
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	userID := GetUserID(c)
	scheduleID := c.QueryInt("id", 0)
	postID := c.QueryInt("post_id", 0)

	if scheduleID != 0 {
		schedule, err := h.s.Info(c.Context(), userID, int64(scheduleID))
		if err != nil {
			return ErrorResponse(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(schedule)
	}

	if postID != 0 {
		schedules, err := h.s.ListByPost(c.Context(), userID, int64(postID))
		if err != nil {
			return ErrorResponse(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(schedules)
	}

	schedules, err := h.s.List(c.Context(), userID)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(schedules)
}

func (h *ScheduleHandler) ListAttempts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	scheduleID := c.QueryInt("id", 0)

	attempts, err := h.s.Attempts(c.Context(), userID, int64(scheduleID))
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(attempts)
}

func (h *ScheduleHandler) CancelSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)
	scheduleID := c.QueryInt("id", 0)

	err := h.s.Cancel(c.Context(), userID, int64(scheduleID))
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
