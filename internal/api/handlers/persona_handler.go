package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postpilothq/postpilot/internal/service"
)

type PersonaHandler struct {
	s service.PersonaService
}

func NewPersonaHandler(service service.PersonaService) *PersonaHandler {
	return &PersonaHandler{s: service}
}

type personaRequest struct {
	Name        string `json:"name"`
	Tone        string `json:"tone"`
	Description string `json:"description"`
}

func (h *PersonaHandler) CreatePersona(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req personaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	id, err := h.s.Create(c.Context(), userID, req.Name, req.Tone, req.Description)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": id,
	})
}

func (h *PersonaHandler) ListPersonas(c *fiber.Ctx) error {
	userID := GetUserID(c)

	personas, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list personas",
		})
	}

	return c.Status(fiber.StatusOK).JSON(personas)
}

func (h *PersonaHandler) UpdatePersona(c *fiber.Ctx) error {
	userID := GetUserID(c)
	personaID := c.QueryInt("id", 0)

	var req personaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	err := h.s.Update(c.Context(), userID, int64(personaID), req.Name, req.Tone, req.Description)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PersonaHandler) RemovePersona(c *fiber.Ctx) error {
	userID := GetUserID(c)
	personaID := c.QueryInt("id", 0)

	err := h.s.Remove(c.Context(), userID, int64(personaID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove persona",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
