package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kavyam172/E-commerce-FSE/internal/auth"
	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

type mockCartService struct {
	mu sync.Mutex

	carts map[string]*cart.Cart
	err   error

	calls []string
}

func newMockCartService() *mockCartService {
	return &mockCartService{carts: map[string]*cart.Cart{}}
}

func (m *mockCartService) cartFor(userID string) *cart.Cart {
	c, ok := m.carts[userID]
	if !ok {
		c = cart.New(userID)
		m.carts[userID] = c
	}
	return c
}

func (m *mockCartService) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.cartFor(userID), nil
}

func (m *mockCartService) AddItem(ctx context.Context, userID, productID string, unitPrice decimal.Decimal, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "add")
	if m.err != nil {
		return m.err
	}
	return m.cartFor(userID).AddItem(productID, unitPrice, qty)
}

func (m *mockCartService) ReduceItem(ctx context.Context, userID, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "reduce")
	if m.err != nil {
		return m.err
	}
	err := m.cartFor(userID).ChangeQuantity(productID, -qty)
	if errors.Is(err, cart.ErrItemNotFound) {
		return nil
	}
	return err
}

func (m *mockCartService) RemoveItem(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "remove")
	if m.err != nil {
		return m.err
	}
	m.cartFor(userID).RemoveItem(productID)
	return nil
}

func (m *mockCartService) ClearCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "clear")
	if m.err != nil {
		return m.err
	}
	m.cartFor(userID).Clear()
	return nil
}

func authedRequest(t *testing.T, method, target string, body any, userID string) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, target, reader)
	if userID != "" {
		session := &auth.Session{UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}
		request = request.WithContext(auth.ContextWithSession(request.Context(), session))
	}
	return request
}

func TestAddItem(t *testing.T) {
	svc := newMockCartService()
	handler := NewCartHandler(svc, 5*time.Second)

	body := deltaRequestDTO{UserID: "u1", ProductID: "p1", Quantity: 2, UnitPrice: "19.99"}
	recorder := httptest.NewRecorder()
	handler.AddItem(recorder, authedRequest(t, "POST", "/cart/add", body, "u1"))

	require.Equal(t, http.StatusCreated, recorder.Code)

	var response cartDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "u1", response.UserID)
	require.Len(t, response.Items, 1)
	assert.Equal(t, "p1", response.Items[0].ProductID)
	assert.Equal(t, "19.99", response.Items[0].UnitPrice)
	assert.Equal(t, 2, response.Items[0].Quantity)
}

func TestAddItemUnauthorized(t *testing.T) {
	handler := NewCartHandler(newMockCartService(), 5*time.Second)

	body := deltaRequestDTO{UserID: "u1", ProductID: "p1", Quantity: 1, UnitPrice: "1"}
	recorder := httptest.NewRecorder()
	handler.AddItem(recorder, authedRequest(t, "POST", "/cart/add", body, ""))

	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "unauthorized", response.Code)
}

func TestAddItemForOtherUserForbidden(t *testing.T) {
	svc := newMockCartService()
	handler := NewCartHandler(svc, 5*time.Second)

	body := deltaRequestDTO{UserID: "victim", ProductID: "p1", Quantity: 1, UnitPrice: "1"}
	recorder := httptest.NewRecorder()
	handler.AddItem(recorder, authedRequest(t, "POST", "/cart/add", body, "attacker"))

	require.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Empty(t, svc.calls)
}

func TestAddItemInvalidQuantity(t *testing.T) {
	handler := NewCartHandler(newMockCartService(), 5*time.Second)

	for _, qty := range []int{0, -1, 100} {
		body := deltaRequestDTO{UserID: "u1", ProductID: "p1", Quantity: qty, UnitPrice: "1"}
		recorder := httptest.NewRecorder()
		handler.AddItem(recorder, authedRequest(t, "POST", "/cart/add", body, "u1"))

		require.Equal(t, http.StatusBadRequest, recorder.Code, "quantity %d", qty)
	}
}

func TestAddItemBadPrice(t *testing.T) {
	handler := NewCartHandler(newMockCartService(), 5*time.Second)

	body := deltaRequestDTO{UserID: "u1", ProductID: "p1", Quantity: 1, UnitPrice: "not-a-price"}
	recorder := httptest.NewRecorder()
	handler.AddItem(recorder, authedRequest(t, "POST", "/cart/add", body, "u1"))

	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "invalid_price", response.Code)
}

func TestReduceItem(t *testing.T) {
	svc := newMockCartService()
	require.NoError(t, svc.cartFor("u1").AddItem("p1", decimal.NewFromInt(10), 3))
	handler := NewCartHandler(svc, 5*time.Second)

	body := deltaRequestDTO{UserID: "u1", ProductID: "p1", Quantity: 2}
	recorder := httptest.NewRecorder()
	handler.ReduceItem(recorder, authedRequest(t, "POST", "/cart/reduce", body, "u1"))

	require.Equal(t, http.StatusOK, recorder.Code)

	var response cartDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	require.Len(t, response.Items, 1)
	assert.Equal(t, 1, response.Items[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	svc := newMockCartService()
	require.NoError(t, svc.cartFor("u1").AddItem("p1", decimal.NewFromInt(10), 3))
	handler := NewCartHandler(svc, 5*time.Second)

	body := deltaRequestDTO{UserID: "u1", ProductID: "p1"}
	recorder := httptest.NewRecorder()
	handler.RemoveItem(recorder, authedRequest(t, "POST", "/cart/remove", body, "u1"))

	require.Equal(t, http.StatusOK, recorder.Code)

	var response cartDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Empty(t, response.Items)
}

func TestClearCart(t *testing.T) {
	svc := newMockCartService()
	require.NoError(t, svc.cartFor("u1").AddItem("p1", decimal.NewFromInt(10), 3))
	require.NoError(t, svc.cartFor("u1").AddItem("p2", decimal.NewFromInt(5), 1))
	handler := NewCartHandler(svc, 5*time.Second)

	body := deltaRequestDTO{UserID: "u1"}
	recorder := httptest.NewRecorder()
	handler.ClearCart(recorder, authedRequest(t, "POST", "/cart/clear", body, "u1"))

	require.Equal(t, http.StatusOK, recorder.Code)

	var response cartDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Empty(t, response.Items)
}

func TestGetCartOwnerOnly(t *testing.T) {
	svc := newMockCartService()
	require.NoError(t, svc.cartFor("u1").AddItem("p1", decimal.NewFromInt(10), 2))
	handler := NewCartHandler(svc, 5*time.Second)

	router := chi.NewRouter()
	router.Get("/cart/{userid}", handler.GetCart)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, authedRequest(t, "GET", "/cart/u1", nil, "u1"))
	require.Equal(t, http.StatusOK, recorder.Code)

	var response cartDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	require.Len(t, response.Items, 1)
	assert.Equal(t, "p1", response.Items[0].ProductID)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, authedRequest(t, "GET", "/cart/u1", nil, "someone-else"))
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestCartServiceFailure(t *testing.T) {
	svc := newMockCartService()
	svc.err = errors.New("mongo unavailable")
	handler := NewCartHandler(svc, 5*time.Second)

	body := deltaRequestDTO{UserID: "u1", ProductID: "p1", Quantity: 1, UnitPrice: "1"}
	recorder := httptest.NewRecorder()
	handler.AddItem(recorder, authedRequest(t, "POST", "/cart/add", body, "u1"))

	require.Equal(t, http.StatusInternalServerError, recorder.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "internal_error", response.Code)
}

func TestInternalErrorLogsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	svc := newMockCartService()
	svc.err = errors.New("mongo unavailable")
	handler := NewCartHandler(svc, 5*time.Second)

	body := deltaRequestDTO{UserID: "u1", ProductID: "p1", Quantity: 1, UnitPrice: "1"}
	request := authedRequest(t, "POST", "/cart/add", body, "u1")
	request.Header.Set("X-Request-ID", "req-abc-123")

	recorder := httptest.NewRecorder()
	RequestIDMiddleware(http.HandlerFunc(handler.AddItem)).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusInternalServerError, recorder.Code)

	// The generic 500 body hides the cause; the log line carries it, keyed by
	// the request ID the middleware put on the context.
	assert.Contains(t, buf.String(), "request_id=req-abc-123")
	assert.Contains(t, buf.String(), "mongo unavailable")
}
