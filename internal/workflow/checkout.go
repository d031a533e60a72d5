package workflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"warung/internal/identity"
	"warung/internal/models"
	"warung/internal/store"

	"github.com/shopspring/decimal"
)

// ShippingFee is the flat fee added to every order subtotal.
var ShippingFee = decimal.RequireFromString("20.00")

// CheckoutResult is the outcome of a placed order.
type CheckoutResult struct {
	OrderID int64           `json:"order_id"`
	Total   decimal.Decimal `json:"total"`
	Status  string          `json:"status"`
}

type checkoutUser struct {
	ID               int64
	Username         string
	ShippingAddress  string
	PaymentReference string
}

type checkoutLine struct {
	ProductID int64
	Quantity  int
}

// CheckoutPlace converts the subject's cart into an order. Guards on stock
// and the decrements run inside one transaction; splitting them would let
// two concurrent checkouts both pass the guard. The payment collaborator is
// invoked only after that transaction commits, so the database lock is never
// held across a slow network call, and the status transition runs in a
// second short transaction.
func (e *Engine) CheckoutPlace(ctx context.Context, ident identity.Identity) (CheckoutResult, error) {
	var out CheckoutResult
	if werr := e.authorize("checkout.place", ident); werr != nil {
		return out, werr
	}

	var (
		user    checkoutUser
		orderID int64
		total   decimal.Decimal
	)
	err := e.store.Transaction(ctx, func(tx *store.Tx) error {
		found, err := tx.QueryOne(ctx, &user,
			"SELECT id, username, shipping_address, payment_reference FROM users WHERE id = ?",
			ident.UserID)
		if err != nil {
			return err
		}
		if !found {
			return errOf(KindUnauthenticated)
		}

		var lines []checkoutLine
		err = tx.QueryAll(ctx, &lines,
			"SELECT product_id, quantity FROM cart_lines WHERE user_id = ? ORDER BY product_id",
			ident.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return errOf(KindCartEmpty)
		}

		// re-read each product inside this transaction: the cart-add guard
		// ran against an older snapshot and reserves nothing
		type pricedLine struct {
			productID int64
			quantity  int
			unitPrice decimal.Decimal
		}
		priced := make([]pricedLine, 0, len(lines))
		subtotal := decimal.Zero
		for _, line := range lines {
			var product models.Product
			found, err := tx.QueryOne(ctx, &product,
				"SELECT id, price, stock FROM products WHERE id = ?", line.ProductID)
			if err != nil {
				return err
			}
			if !found || product.Stock < line.Quantity {
				return &Error{Kind: KindInsufficientStock, ProductID: line.ProductID}
			}
			priced = append(priced, pricedLine{line.ProductID, line.Quantity, product.Price})
			subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		if user.PaymentReference == "" {
			return errOf(KindPaymentSetupRequired)
		}

		now := time.Now().UTC()
		total = subtotal.Add(ShippingFee)
		_, err = tx.Execute(ctx,
			`INSERT INTO orders (user_id, shipping_address, subtotal, shipping_fee, total, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.ShippingAddress, subtotal, ShippingFee, total, models.OrderStatusPending, now)
		if err != nil {
			return err
		}
		orderID, err = tx.LastInsertID(ctx)
		if err != nil {
			return err
		}

		for _, line := range priced {
			_, err = tx.Execute(ctx,
				"INSERT INTO order_lines (order_id, product_id, quantity, unit_price) VALUES (?, ?, ?, ?)",
				orderID, line.productID, line.quantity, line.unitPrice)
			if err != nil {
				return err
			}
			_, err = tx.Execute(ctx,
				"UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ?",
				line.quantity, now, line.productID)
			if err != nil {
				return err
			}
		}

		if _, err := tx.Execute(ctx, "DELETE FROM cart_lines WHERE user_id = ?", user.ID); err != nil {
			return err
		}

		for _, line := range priced {
			_, err = tx.Execute(ctx,
				"INSERT INTO purchases (user_id, product_id, created_at) VALUES (?, ?, ?)",
				user.ID, line.productID, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, normalize(err)
	}

	status := e.settlePayment(ctx, orderID, user.PaymentReference, total)

	e.publishOrderEvent(map[string]interface{}{
		"order_id": orderID,
		"user_id":  user.ID,
		"status":   status,
		"total":    total.StringFixed(2),
	})
	e.sendConfirmationMail(user, orderID, total, status)

	if status == models.OrderStatusFailed {
		return CheckoutResult{}, &Error{Kind: KindPaymentFailed, OrderID: orderID}
	}
	return CheckoutResult{OrderID: orderID, Total: total, Status: status}, nil
}

// settlePayment charges the stored reference and records the terminal status
// transition. The order row is retained for audit either way.
func (e *Engine) settlePayment(ctx context.Context, orderID int64, reference string, total decimal.Decimal) string {
	ok, err := e.payment.Charge(ctx, reference, total)
	if err != nil {
		log.Printf("payment collaborator error for order %d: %v", orderID, err)
		ok = false
	}
	status := models.OrderStatusPaid
	if !ok {
		status = models.OrderStatusFailed
	}

	txErr := e.store.Transaction(ctx, func(tx *store.Tx) error {
		_, err := tx.Execute(ctx,
			"UPDATE orders SET status = ? WHERE id = ? AND status = ?",
			status, orderID, models.OrderStatusPending)
		return err
	})
	if txErr != nil {
		log.Printf("failed to record payment status for order %d: %v", orderID, txErr)
	}
	return status
}

func (e *Engine) sendConfirmationMail(user checkoutUser, orderID int64, total decimal.Decimal, status string) {
	unsubscribe := ""
	if token, err := e.tokens.IssueUnsubscribe(user.ID); err == nil {
		unsubscribe = "\n\nUnsubscribe from our newsletter: /unsubscribe/" + token
	}
	body := fmt.Sprintf("Order #%d is %s. Total: %s.%s", orderID, status, total.StringFixed(2), unsubscribe)
	e.publishMail(user.Username, fmt.Sprintf("Your order #%d", orderID), body)
}
