package workflow

import (
	"errors"
	"log"

	"warung/internal/store"
)

// Kind tags a workflow outcome. The transport layer pattern-matches on it;
// no raw SQL message or internal identifier ever reaches a client.
type Kind string

const (
	KindValidation           Kind = "ValidationFailure"
	KindUnauthenticated      Kind = "Unauthenticated"
	KindForbidden            Kind = "Forbidden"
	KindNotFound             Kind = "NotFound"
	KindInsufficientStock    Kind = "InsufficientStock"
	KindPurchaseRequired     Kind = "PurchaseRequired"
	KindCartEmpty            Kind = "CartEmpty"
	KindPaymentSetupRequired Kind = "PaymentSetupRequired"
	KindPaymentFailed        Kind = "PaymentFailed"
	KindStoreBusy            Kind = "StoreBusy"
	KindStoreFailed          Kind = "StoreFailed"
)

// Error is a tagged workflow outcome. Fields carries per-field validation
// reasons; ProductID and OrderID are set when the taxonomy names them.
type Error struct {
	Kind      Kind
	Fields    map[string]string
	ProductID int64
	OrderID   int64
}

func (e *Error) Error() string {
	return string(e.Kind)
}

func errOf(kind Kind) *Error {
	return &Error{Kind: kind}
}

// normalize maps an error escaping a workflow run to its outcome. Domain
// errors pass through; store errors collapse to StoreBusy or StoreFailed
// with the cause logged server-side only.
func normalize(err error) error {
	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}
	if errors.Is(err, store.ErrBusy) {
		return errOf(KindStoreBusy)
	}
	log.Printf("workflow store failure: %v", err)
	return errOf(KindStoreFailed)
}

// validationError wraps an aggregated field failure map.
func validationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Fields: fields}
}
