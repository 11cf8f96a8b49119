package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := strconv.Atoi(c.Locals("user_id").(string))
	return int64(userID)
}

// ErrorResponse maps domain errors onto HTTP statuses. Anything unrecognized
// is a 500 with a generic message so internals don't leak.
func ErrorResponse(c *fiber.Ctx, err error) error {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationErr.Reason,
		})
	}

	var stateErr *models.InvalidStateError
	if errors.As(err, &stateErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": stateErr.Error(),
		})
	}

	switch {
	case errors.Is(err, repository.ErrDuplicateSchedule):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, repository.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, repository.ErrCouponNotFound),
		errors.Is(err, repository.ErrCouponExpiredCode):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, repository.ErrCouponExhausted),
		errors.Is(err, repository.ErrCouponAlreadyUsed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "something went wrong",
	})
}
