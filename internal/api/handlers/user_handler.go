package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postpilothq/postpilot/internal/service"
)

type UserHandler struct {
	s  service.UserService
	ss service.SubscriptionService
}

func NewUserHandler(service service.UserService, subscriptions service.SubscriptionService) *UserHandler {
	return &UserHandler{s: service, ss: subscriptions}
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	userID := GetUserID(c)

	user, err := h.s.GetUserInfo(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to get user info",
		})
	}

	return c.Status(fiber.StatusOK).JSON(user)
}

func (h *UserHandler) GetSubscription(c *fiber.Ctx) error {
	userID := GetUserID(c)

	subscription, err := h.ss.Info(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to get subscription info",
		})
	}

	return c.Status(fiber.StatusOK).JSON(subscription)
}

func (h *UserHandler) RemoveUser(c *fiber.Ctx) error {
	userID := GetUserID(c)

	err := h.s.RemoveUser(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove user",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
