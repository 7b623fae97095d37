package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

type Status string

const (
	// StatusDraft is the current cart contents; it never exists as a
	// persisted order.
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

type ShippingInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
}

type PaymentInfo struct {
	CardName   string `json:"card_name"`
	CardNumber string `json:"card_number"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CVV        string `json:"cvv"`
}

// Order is the immutable snapshot produced by a confirmed checkout. Exactly
// one Order comes out of one cart-at-a-point-in-time.
type Order struct {
	ID               string
	UserID           string
	Lines            []cart.LineItem
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	ShippingCost     decimal.Decimal
	GrandTotal       decimal.Decimal
	ShippingAddress  ShippingInfo
	PaymentReference string
	Status           Status
	CreatedAt        time.Time
}
