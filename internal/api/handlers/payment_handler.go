package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/service"
	"github.com/postpilothq/postpilot/internal/transfer"
)

type PaymentHandler struct {
	s   service.SubscriptionService
	cfg config.Config
}

func NewPaymentHandler(cfg config.Config, service service.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{s: service, cfg: cfg}
}

// PaymentWebhook receives Lemon Squeezy events. The X-Signature header is an
// HMAC-SHA256 of the raw body; reject anything that doesn't verify.
func (h *PaymentHandler) PaymentWebhook(c *fiber.Ctx) error {
	body := c.Body()

	if !verifySignature(body, c.Get("X-Signature"), h.cfg.LemonSqueezySecret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid signature",
		})
	}

	var requestData transfer.LemonSqueezyEvent
	if err := json.Unmarshal(body, &requestData); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse webhook payload",
		})
	}

	err := h.s.HandleEvent(c.Context(), &requestData)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}

	return c.SendStatus(fiber.StatusOK)
}

func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
