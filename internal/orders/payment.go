package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/checkout"
)

var ErrPaymentDeclined = errors.New("payment declined")

// Charger is the payment collaborator. Charge runs at most once per checkout
// attempt; declines are fatal to the attempt and never retried here.
type Charger interface {
	Charge(ctx context.Context, amount decimal.Decimal, card checkout.PaymentInfo) (reference string, err error)
}

// SandboxCharger approves everything except the conventional decline test
// cards (number ending in 0002), the way payment sandboxes behave.
type SandboxCharger struct{}

func (SandboxCharger) Charge(_ context.Context, amount decimal.Decimal, card checkout.PaymentInfo) (string, error) {
	number := strings.ReplaceAll(card.CardNumber, " ", "")
	if strings.HasSuffix(number, "0002") {
		return "", ErrPaymentDeclined
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("invalid charge amount %s", amount)
	}
	return "pay-" + uuid.NewString(), nil
}
