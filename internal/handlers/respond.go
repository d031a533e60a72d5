package handlers

import (
	"errors"
	"log"

	"warung/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// statusOf maps workflow outcome kinds to HTTP status codes.
func statusOf(kind workflow.Kind) int {
	switch kind {
	case workflow.KindValidation:
		return fiber.StatusBadRequest
	case workflow.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case workflow.KindForbidden:
		return fiber.StatusForbidden
	case workflow.KindNotFound:
		return fiber.StatusNotFound
	case workflow.KindPaymentFailed:
		return fiber.StatusPaymentRequired
	case workflow.KindCartEmpty, workflow.KindInsufficientStock,
		workflow.KindPurchaseRequired, workflow.KindPaymentSetupRequired:
		return fiber.StatusConflict
	case workflow.KindStoreBusy:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError serializes a workflow outcome error as {error_kind, detail?}.
func writeError(c *fiber.Ctx, err error) error {
	var werr *workflow.Error
	if !errors.As(err, &werr) {
		log.Printf("unclassified handler error: %v", err)
		werr = &workflow.Error{Kind: workflow.KindStoreFailed}
	}

	body := fiber.Map{"error_kind": string(werr.Kind)}
	switch {
	case werr.Fields != nil:
		body["detail"] = werr.Fields
	case werr.Kind == workflow.KindInsufficientStock && werr.ProductID != 0:
		body["detail"] = fiber.Map{"product_id": werr.ProductID}
	case werr.Kind == workflow.KindPaymentFailed && werr.OrderID != 0:
		body["detail"] = fiber.Map{"order_id": werr.OrderID}
	}
	return c.Status(statusOf(werr.Kind)).JSON(body)
}
