package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

type mockGateway struct {
	m       sync.Mutex
	calls   int
	err     error
	receipt *Receipt
	block   chan struct{} // when set, SubmitOrder waits until closed
}

func (g *mockGateway) SubmitOrder(_ context.Context, _ Submission) (*Receipt, error) {
	g.m.Lock()
	g.calls++
	block := g.block
	g.m.Unlock()

	if block != nil {
		<-block
	}
	if g.err != nil {
		return nil, g.err
	}
	if g.receipt != nil {
		return g.receipt, nil
	}
	return &Receipt{OrderID: "ord-1", PaymentReference: "pay-1"}, nil
}

func (g *mockGateway) callCount() int {
	g.m.Lock()
	defer g.m.Unlock()
	return g.calls
}

func validShipping() ShippingInfo {
	return ShippingInfo{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Address:   "1 Analytical Way",
		City:      "London",
		State:     "LDN",
		Zip:       "E1 6AN",
	}
}

func validPayment() PaymentInfo {
	return PaymentInfo{
		CardName:   "Ada Lovelace",
		CardNumber: "4242424242424242",
		ExpMonth:   "12",
		ExpYear:    "2030",
		CVV:        "123",
	}
}

func filledCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New("user1")
	require.NoError(t, c.AddItem("P1", decimal.RequireFromString("10.00"), 2))
	require.NoError(t, c.AddItem("P2", decimal.RequireFromString("5.50"), 1))
	return c
}

func TestFinalize_Success(t *testing.T) {
	gw := &mockGateway{}
	f := NewFinalizer(gw, decimal.RequireFromString("0.1"), decimal.RequireFromString("4.00"))
	c := filledCart(t)

	order, err := f.Finalize(context.Background(), c, validShipping(), validPayment())
	require.NoError(t, err)

	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, "pay-1", order.PaymentReference)
	assert.Equal(t, StatusConfirmed, order.Status)
	assert.True(t, order.Status.IsTerminal())
	assert.Equal(t, "user1", order.UserID)
	assert.Len(t, order.Lines, 2)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("25.50")))
	assert.True(t, order.Tax.Equal(decimal.RequireFromString("2.55")))
	assert.True(t, order.ShippingCost.Equal(decimal.RequireFromString("4.00")))
	assert.True(t, order.GrandTotal.Equal(decimal.RequireFromString("32.05")), "grand total = %s", order.GrandTotal)

	assert.Equal(t, 0, c.Count(), "cart is cleared after confirmation")
	assert.Equal(t, 1, gw.callCount())
}

func TestFinalize_EmptyCart(t *testing.T) {
	gw := &mockGateway{}
	f := NewFinalizer(gw, decimal.Zero, decimal.Zero)

	_, err := f.Finalize(context.Background(), cart.New("user1"), validShipping(), validPayment())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, gw.callCount())
}

func TestFinalize_ValidationFieldMap(t *testing.T) {
	gw := &mockGateway{}
	f := NewFinalizer(gw, decimal.Zero, decimal.Zero)
	c := filledCart(t)

	shipping := validShipping()
	shipping.FirstName = ""
	shipping.Email = "not-an-email"
	payment := validPayment()
	payment.CardNumber = "1234"
	payment.CVV = ""

	_, err := f.Finalize(context.Background(), c, shipping, payment)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "first name is required", verr.Fields["first_name"])
	assert.Equal(t, "email is invalid", verr.Fields["email"])
	assert.Equal(t, "card number is invalid", verr.Fields["card_number"])
	assert.Equal(t, "cvv is required", verr.Fields["cvv"])

	assert.Equal(t, 0, gw.callCount(), "collaborator not called on validation failure")
	assert.Equal(t, 3, c.Count(), "cart untouched")
}

func TestFinalize_GatewayFailureLeavesCart(t *testing.T) {
	gw := &mockGateway{err: errors.New("card declined")}
	f := NewFinalizer(gw, decimal.Zero, decimal.Zero)
	c := filledCart(t)

	_, err := f.Finalize(context.Background(), c, validShipping(), validPayment())
	require.ErrorContains(t, err, "card declined")

	assert.Equal(t, 3, c.Count(), "cart preserved for explicit retry")
	assert.Equal(t, 1, gw.callCount(), "no automatic retry for payment")

	// An explicit resubmission is allowed once the failed attempt returned.
	gw.m.Lock()
	gw.err = nil
	gw.m.Unlock()
	order, err := f.Finalize(context.Background(), c, validShipping(), validPayment())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, order.Status)
	assert.Equal(t, 0, c.Count())
}

func TestFinalize_AtMostOncePerDraft(t *testing.T) {
	block := make(chan struct{})
	gw := &mockGateway{block: block}
	f := NewFinalizer(gw, decimal.Zero, decimal.Zero)
	c := filledCart(t)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.Finalize(context.Background(), c, validShipping(), validPayment())
		firstDone <- err
	}()

	// Wait until the first attempt is inside the gateway call.
	require.Eventually(t, func() bool {
		return gw.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.Finalize(context.Background(), c, validShipping(), validPayment())
	require.ErrorIs(t, err, ErrCheckoutInFlight)

	close(block)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, gw.callCount(), "only one order produced from the draft")
}
