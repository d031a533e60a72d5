package workflow

import (
	"context"

	"warung/internal/identity"
	"warung/internal/models"
	"warung/internal/store"
	"warung/internal/validation"

	"github.com/shopspring/decimal"
)

// CartAddInput is the validated payload of cart.add.
type CartAddInput struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1,lte=1000"`
}

func decodeCartAdd(body []byte) (CartAddInput, *validation.Failure) {
	var in CartAddInput
	d := validation.NewDecoder(body)
	d.Int64("product_id", true, &in.ProductID)
	d.Int("quantity", true, &in.Quantity)
	return in, d.Finish(&in)
}

// CartAddResult reports the line quantity after the upsert.
type CartAddResult struct {
	CartQuantity int `json:"cart_quantity"`
}

// CartAdd upserts a cart line for the subject. Stock is guarded against the
// combined quantity (existing line plus requested) but never decremented
// here; the decrement is deferred to checkout.
func (e *Engine) CartAdd(ctx context.Context, ident identity.Identity, body []byte) (CartAddResult, error) {
	var out CartAddResult
	if werr := e.authorize("cart.add", ident); werr != nil {
		return out, werr
	}
	in, failure := decodeCartAdd(body)
	if failure != nil {
		return out, validationError(failure.Fields)
	}

	err := e.store.Transaction(ctx, func(tx *store.Tx) error {
		var product models.Product
		found, err := tx.QueryOne(ctx, &product,
			"SELECT id, stock FROM products WHERE id = ?", in.ProductID)
		if err != nil {
			return err
		}
		if !found {
			return errOf(KindNotFound)
		}

		var line models.CartLine
		haveLine, err := tx.QueryOne(ctx, &line,
			"SELECT user_id, product_id, quantity FROM cart_lines WHERE user_id = ? AND product_id = ?",
			ident.UserID, in.ProductID)
		if err != nil {
			return err
		}

		// guard against the combined quantity so a double submit cannot
		// oversell
		want := in.Quantity
		if haveLine {
			want += line.Quantity
		}
		if product.Stock < want {
			return &Error{Kind: KindInsufficientStock, ProductID: product.ID}
		}

		if haveLine {
			_, err = tx.Execute(ctx,
				"UPDATE cart_lines SET quantity = ? WHERE user_id = ? AND product_id = ?",
				want, ident.UserID, in.ProductID)
		} else {
			_, err = tx.Execute(ctx,
				"INSERT INTO cart_lines (user_id, product_id, quantity) VALUES (?, ?, ?)",
				ident.UserID, in.ProductID, want)
		}
		if err != nil {
			return err
		}
		out.CartQuantity = want
		return nil
	})
	if err != nil {
		return CartAddResult{}, normalize(err)
	}
	return out, nil
}

// CartViewResult is the subject's cart joined with product data.
type CartViewResult struct {
	Lines    []models.CartView `json:"lines"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

// CartView lists the subject's cart lines with a computed subtotal.
func (e *Engine) CartView(ctx context.Context, ident identity.Identity) (CartViewResult, error) {
	var out CartViewResult
	if werr := e.authorize("cart.view", ident); werr != nil {
		return out, werr
	}

	var lines []models.CartView
	err := e.store.QueryAll(ctx, &lines,
		`SELECT cl.product_id, p.name, cl.quantity, p.price AS unit_price
		 FROM cart_lines cl JOIN products p ON p.id = cl.product_id
		 WHERE cl.user_id = ?
		 ORDER BY cl.product_id`, ident.UserID)
	if err != nil {
		return out, normalize(err)
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	out.Lines = lines
	out.Subtotal = subtotal
	if out.Lines == nil {
		out.Lines = []models.CartView{}
	}
	return out, nil
}
