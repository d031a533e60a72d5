package handlers

import (
	"warung/internal/middleware"
	"warung/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// CartHandler handles cart and checkout requests.
type CartHandler struct {
	engine *workflow.Engine
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(engine *workflow.Engine) *CartHandler {
	return &CartHandler{engine: engine}
}

// RegisterRoutes registers the cart and checkout routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/cart", h.HandleCartAdd)
	router.Get("/cart", h.HandleCartView)
	router.Post("/checkout", h.HandleCheckout)
}

// HandleCartAdd runs cart.add for the current subject.
func (h *CartHandler) HandleCartAdd(c *fiber.Ctx) error {
	result, err := h.engine.CartAdd(c.UserContext(), middleware.IdentityFrom(c), c.Body())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

// HandleCartView runs cart.view for the current subject.
func (h *CartHandler) HandleCartView(c *fiber.Ctx) error {
	result, err := h.engine.CartView(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

// HandleCheckout runs checkout.place. The request carries no body; every
// input derives from the subject's cart and user row.
func (h *CartHandler) HandleCheckout(c *fiber.Ctx) error {
	result, err := h.engine.CheckoutPlace(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}
