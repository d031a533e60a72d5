package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Payment charges a stored payment reference. The engine treats the result
// as opaque and never retries within a request.
type Payment interface {
	Charge(ctx context.Context, reference string, amount decimal.Decimal) (bool, error)
}

// SimulatedPayment is the deterministic stand-in for a real gateway.
// References prefixed "fail-" are declined; everything else succeeds.
type SimulatedPayment struct{}

func (SimulatedPayment) Charge(_ context.Context, reference string, _ decimal.Decimal) (bool, error) {
	if reference == "" || strings.HasPrefix(reference, "fail-") {
		return false, nil
	}
	return true, nil
}
