package handlers

import (
	"log"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/service"
	"github.com/postpilothq/postpilot/pkg/utils"
)

type PlatformHandler struct {
	ps  service.PlatformService
	cfg config.Config
}

func NewPlatformHandler(ps service.PlatformService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		cfg: cfg,
	}
}

// AddSocialAccount starts the OAuth dance. The state is the caller's session
// JWT so the callback can attribute the account without a session cookie on
// the platform's redirect.
func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	platform := c.Params("platform")
	state := c.Query("state")

	switch platform {
	case "twitter":
		verifier, err := utils.GenerateRandomKey(32)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "something went wrong",
			})
		}
		c.Cookie(&fiber.Cookie{
			Name:     "twitter_verifier",
			Value:    verifier,
			HTTPOnly: true,
			Path:     "/",
			Expires:  time.Now().Add(10 * time.Minute),
		})
		return c.Redirect(h.ps.TwitterAuthURL(state, verifier))
	case "threads":
		return c.Redirect(h.ps.ThreadsAuthURL(state))
	case "youtube":
		return c.Redirect(h.ps.YoutubeAuthURL(state))
	}

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "unknown platform",
	})
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	platform := c.Params("platform")

	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	switch platform {
	case "twitter":
		verifier := c.Cookies("twitter_verifier")
		err = h.ps.TwitterCallback(c.Context(), code, verifier, userID)
	case "threads":
		err = h.ps.ThreadsCallback(c.Context(), code, userID)
	case "youtube":
		err = h.ps.YoutubeCallback(c.Context(), code, userID)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown platform",
		})
	}

	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	redirectURL := h.cfg.FrontendURL + "/dashboard/accounts"
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.ps.ListAccounts(c.Context(), userID)
	if err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch social accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountId := c.QueryInt("id", 0)

	err := h.ps.RemoveAccount(c.Context(), userID, int64(accountId))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to delete social account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
