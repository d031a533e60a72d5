package workflow

import (
	"context"
	"strings"
	"time"

	"warung/internal/identity"
	"warung/internal/store"
	"warung/internal/validation"
)

// ReviewSubmitInput is the validated payload of review.submit. The product
// id comes from the request path.
type ReviewSubmitInput struct {
	ProductID int64  `json:"product_id" validate:"gt=0"`
	Rating    int    `json:"rating" validate:"gte=1,lte=5"`
	Text      string `json:"text" validate:"max=4096"`
}

func decodeReviewSubmit(productIDParam string, body []byte) (ReviewSubmitInput, *validation.Failure) {
	var in ReviewSubmitInput
	id, idFailure := validation.PathID("product_id", productIDParam)
	in.ProductID = id

	d := validation.NewDecoder(body)
	d.Int("rating", true, &in.Rating)
	d.String("text", true, &in.Text)
	failure := d.Finish(&in)

	// the stored text keeps its raw form; escaping is an output concern
	if failure == nil && strings.TrimSpace(in.Text) == "" {
		failure = &validation.Failure{Fields: map[string]string{"text": "must not be empty"}}
	}

	if idFailure != nil {
		if failure == nil {
			failure = idFailure
		} else {
			// the parse reason wins over the gt predicate on the zero id
			for field, reason := range idFailure.Fields {
				failure.Fields[field] = reason
			}
		}
	}
	return in, failure
}

// ReviewSubmitResult carries the new review id.
type ReviewSubmitResult struct {
	ReviewID int64 `json:"review_id"`
}

// ReviewSubmit inserts a review, gated on a prior purchase of the product by
// the subject.
func (e *Engine) ReviewSubmit(ctx context.Context, ident identity.Identity, productIDParam string, body []byte) (ReviewSubmitResult, error) {
	var out ReviewSubmitResult
	if werr := e.authorize("review.submit", ident); werr != nil {
		return out, werr
	}
	in, failure := decodeReviewSubmit(productIDParam, body)
	if failure != nil {
		return out, validationError(failure.Fields)
	}

	err := e.store.Transaction(ctx, func(tx *store.Tx) error {
		var productID int64
		found, err := tx.QueryOne(ctx, &productID,
			"SELECT id FROM products WHERE id = ?", in.ProductID)
		if err != nil {
			return err
		}
		if !found {
			return errOf(KindNotFound)
		}

		var purchaseID int64
		purchased, err := tx.QueryOne(ctx, &purchaseID,
			"SELECT id FROM purchases WHERE user_id = ? AND product_id = ? LIMIT 1",
			ident.UserID, in.ProductID)
		if err != nil {
			return err
		}
		if !purchased {
			return errOf(KindPurchaseRequired)
		}

		_, err = tx.Execute(ctx,
			"INSERT INTO reviews (user_id, product_id, rating, text, created_at) VALUES (?, ?, ?, ?, ?)",
			ident.UserID, in.ProductID, in.Rating, in.Text, time.Now().UTC())
		if err != nil {
			return err
		}
		out.ReviewID, err = tx.LastInsertID(ctx)
		return err
	})
	if err != nil {
		return ReviewSubmitResult{}, normalize(err)
	}
	return out, nil
}
