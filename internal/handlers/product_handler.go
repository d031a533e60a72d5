package handlers

import (
	"warung/internal/middleware"
	"warung/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles the public catalog reads, review submission and the
// admin catalog mutations.
type ProductHandler struct {
	engine *workflow.Engine
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(engine *workflow.Engine) *ProductHandler {
	return &ProductHandler{engine: engine}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/products", h.HandleList)
	router.Get("/products/:id", h.HandleRead)
	router.Post("/reviews/:product_id", h.HandleReviewSubmit)

	admin := router.Group("/admin/products")
	admin.Post("/", h.HandleCreate)
	admin.Put("/:id", h.HandleUpdate)
	admin.Delete("/:id", h.HandleDelete)
}

// HandleList is the public catalog listing.
func (h *ProductHandler) HandleList(c *fiber.Ctx) error {
	products, err := h.engine.ProductList(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(products)
}

// HandleRead is the public single-product read with reviews attached.
func (h *ProductHandler) HandleRead(c *fiber.Ctx) error {
	result, err := h.engine.ProductRead(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

// HandleReviewSubmit runs review.submit for the current subject.
func (h *ProductHandler) HandleReviewSubmit(c *fiber.Ctx) error {
	result, err := h.engine.ReviewSubmit(c.UserContext(), middleware.IdentityFrom(c), c.Params("product_id"), c.Body())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleCreate runs product.create.
func (h *ProductHandler) HandleCreate(c *fiber.Ctx) error {
	result, err := h.engine.ProductCreate(c.UserContext(), middleware.IdentityFrom(c), c.Body())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleUpdate runs product.update.
func (h *ProductHandler) HandleUpdate(c *fiber.Ctx) error {
	result, err := h.engine.ProductUpdate(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), c.Body())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

// HandleDelete runs product.delete.
func (h *ProductHandler) HandleDelete(c *fiber.Ctx) error {
	result, err := h.engine.ProductDelete(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}
