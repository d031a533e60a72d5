package workflow

import (
	"context"
	"time"

	"warung/internal/identity"
	"warung/internal/models"
	"warung/internal/store"
	"warung/internal/validation"

	"github.com/shopspring/decimal"
)

// ProductInput is the validated payload of product.create and
// product.update.
type ProductInput struct {
	Name        string          `json:"name" validate:"min=1,max=200"`
	Description string          `json:"description" validate:"max=4096"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

func decodeProduct(body []byte) (ProductInput, *validation.Failure) {
	var in ProductInput
	d := validation.NewDecoder(body)
	d.String("name", true, &in.Name)
	d.String("description", false, &in.Description)
	d.Decimal("price", true, &in.Price)
	d.Int("stock", true, &in.Stock)
	return in, d.Finish(&in)
}

// ProductResult carries the id of the affected product.
type ProductResult struct {
	ProductID int64 `json:"product_id"`
}

// ProductCreate inserts a catalog item.
func (e *Engine) ProductCreate(ctx context.Context, ident identity.Identity, body []byte) (ProductResult, error) {
	var out ProductResult
	if werr := e.authorize("product.create", ident); werr != nil {
		return out, werr
	}
	in, failure := decodeProduct(body)
	if failure != nil {
		return out, validationError(failure.Fields)
	}

	err := e.store.Transaction(ctx, func(tx *store.Tx) error {
		now := time.Now().UTC()
		_, err := tx.Execute(ctx,
			"INSERT INTO products (name, description, price, stock, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			in.Name, in.Description, in.Price, in.Stock, now, now)
		if err != nil {
			return err
		}
		out.ProductID, err = tx.LastInsertID(ctx)
		return err
	})
	if err != nil {
		return ProductResult{}, normalize(err)
	}
	return out, nil
}

// ProductUpdate replaces the mutable attributes of a catalog item.
func (e *Engine) ProductUpdate(ctx context.Context, ident identity.Identity, idParam string, body []byte) (ProductResult, error) {
	var out ProductResult
	if werr := e.authorize("product.update", ident); werr != nil {
		return out, werr
	}
	id, idFailure := validation.PathID("id", idParam)
	if idFailure != nil {
		return out, validationError(idFailure.Fields)
	}
	in, failure := decodeProduct(body)
	if failure != nil {
		return out, validationError(failure.Fields)
	}

	err := e.store.Transaction(ctx, func(tx *store.Tx) error {
		var existing int64
		found, err := tx.QueryOne(ctx, &existing, "SELECT id FROM products WHERE id = ?", id)
		if err != nil {
			return err
		}
		if !found {
			return errOf(KindNotFound)
		}
		_, err = tx.Execute(ctx,
			"UPDATE products SET name = ?, description = ?, price = ?, stock = ?, updated_at = ? WHERE id = ?",
			in.Name, in.Description, in.Price, in.Stock, time.Now().UTC(), id)
		if err != nil {
			return err
		}
		out.ProductID = id
		return nil
	})
	if err != nil {
		return ProductResult{}, normalize(err)
	}
	return out, nil
}

// ProductDelete removes a catalog item. Historical order lines keep their
// snapshotted unit price, so deletion succeeds even with past references.
func (e *Engine) ProductDelete(ctx context.Context, ident identity.Identity, idParam string) (ProductResult, error) {
	var out ProductResult
	if werr := e.authorize("product.delete", ident); werr != nil {
		return out, werr
	}
	id, idFailure := validation.PathID("id", idParam)
	if idFailure != nil {
		return out, validationError(idFailure.Fields)
	}

	err := e.store.Transaction(ctx, func(tx *store.Tx) error {
		rows, err := tx.Execute(ctx, "DELETE FROM products WHERE id = ?", id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errOf(KindNotFound)
		}
		// orphaned cart lines would fail their checkout guard anyway
		_, err = tx.Execute(ctx, "DELETE FROM cart_lines WHERE product_id = ?", id)
		if err != nil {
			return err
		}
		out.ProductID = id
		return nil
	})
	if err != nil {
		return ProductResult{}, normalize(err)
	}
	return out, nil
}

// ProductReadResult is a public product view with its reviews attached.
type ProductReadResult struct {
	Product models.Product  `json:"product"`
	Reviews []models.Review `json:"reviews"`
}

// ProductRead is a public read; no role is consulted.
func (e *Engine) ProductRead(ctx context.Context, idParam string) (ProductReadResult, error) {
	var out ProductReadResult
	id, idFailure := validation.PathID("id", idParam)
	if idFailure != nil {
		return out, validationError(idFailure.Fields)
	}

	found, err := e.store.QueryOne(ctx, &out.Product,
		"SELECT id, name, description, price, stock, created_at, updated_at FROM products WHERE id = ?", id)
	if err != nil {
		return out, normalize(err)
	}
	if !found {
		return out, errOf(KindNotFound)
	}
	err = e.store.QueryAll(ctx, &out.Reviews,
		"SELECT id, user_id, product_id, rating, text, created_at FROM reviews WHERE product_id = ? ORDER BY id", id)
	if err != nil {
		return out, normalize(err)
	}
	if out.Reviews == nil {
		out.Reviews = []models.Review{}
	}
	return out, nil
}

// ProductList is a public catalog listing.
func (e *Engine) ProductList(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := e.store.QueryAll(ctx, &products,
		"SELECT id, name, description, price, stock, created_at, updated_at FROM products ORDER BY id")
	if err != nil {
		return nil, normalize(err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}
