package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilothq/postpilot/internal/service"
	"github.com/postpilothq/postpilot/internal/transfer"
)

type PostHandler struct {
	s service.PostService
	v service.VariantService
}

func NewPostHandler(service service.PostService, variants service.VariantService) *PostHandler {
	return &PostHandler{s: service, v: variants}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	title := c.FormValue("title")
	content := c.FormValue("content")
	personaID, _ := strconv.ParseInt(c.FormValue("persona_id", "0"), 10, 64)

	form, err := c.MultipartForm()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	postID, err := h.s.CreatePost(c.Context(), userID, &transfer.PostCreation{
		Title:     title,
		Content:   content,
		PersonaID: personaID},
		form.File["files"])
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": postID,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userId := GetUserID(c)
	postId := c.QueryInt("id", 0)

	if postId != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postId), userId)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to list posts",
			})
		}

		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userId)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postId := c.QueryInt("id", 0)

	err := h.s.Remove(c.Context(), userID, int64(postId))
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) GenerateVariants(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.VariantGeneration
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	variants, err := h.v.Generate(c.Context(), userID, &req)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(variants)
}

func (h *PostHandler) ListVariants(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("post_id", 0)

	variants, err := h.v.List(c.Context(), userID, int64(postID))
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(variants)
}

func (h *PostHandler) CreateVariant(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req struct {
		PostID  int64  `json:"post_id"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	variant, err := h.v.CreateManual(c.Context(), userID, req.PostID, req.Content)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(variant)
}

func (h *PostHandler) RemoveVariant(c *fiber.Ctx) error {
	userID := GetUserID(c)
	variantID := c.QueryInt("id", 0)

	err := h.v.Remove(c.Context(), userID, int64(variantID))
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
