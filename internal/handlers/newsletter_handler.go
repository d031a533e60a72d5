package handlers

import (
	"warung/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// NewsletterHandler handles token-authorized newsletter operations.
type NewsletterHandler struct {
	engine *workflow.Engine
}

// NewNewsletterHandler creates a new NewsletterHandler.
func NewNewsletterHandler(engine *workflow.Engine) *NewsletterHandler {
	return &NewsletterHandler{engine: engine}
}

// RegisterRoutes registers the newsletter routes with the Fiber app.
func (h *NewsletterHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/unsubscribe/:token", h.HandleUnsubscribe)
}

// HandleUnsubscribe runs newsletter.unsubscribe. The bearer token in the
// path proves subject identity; the session is not consulted.
func (h *NewsletterHandler) HandleUnsubscribe(c *fiber.Ctx) error {
	result, err := h.engine.NewsletterUnsubscribe(c.UserContext(), c.Params("token"), c.Body())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}
