// Package remote talks to the cart backend over HTTP/JSON. The backend keeps
// the authoritative per-user cart and accepts signed quantity deltas, so every
// call here is idempotent at the business level: repeating an add with the
// same delta is safe because the server applies the delta atomically, it never
// trusts an absolute quantity from the client.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/auth"
	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

var (
	ErrUnauthorized = errors.New("remote cart: re-authenticate")
	ErrForbidden    = errors.New("remote cart: rejected")
)

// ClientError is a 4xx the user can fix; it is never retried.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("remote cart: %s (status %d)", e.Message, e.StatusCode)
}

type Client struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewClient builds a client with a bounded per-call timeout. Transport errors
// and 5xx responses are retried exactly once; 4xx responses never are.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetSessionTokens installs the cookie credentials sent with every call. The
// backend authenticates via httpOnly-style token cookies, so the tokens
// established at login ride along the same way a browser would send them.
// Empty values clear the credentials, as on logout.
func (c *Client) SetSessionTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

func (c *Client) attachSessionCookies(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" {
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: c.accessToken})
	}
	if c.refreshToken != "" {
		req.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: c.refreshToken})
	}
}

type deltaRequest struct {
	UserID    string `json:"userid"`
	ProductID string `json:"productid"`
	Quantity  int    `json:"quantity,omitempty"`
	UnitPrice string `json:"unit_price,omitempty"`
}

type clearRequest struct {
	UserID string `json:"userid"`
}

type cartItemResponse struct {
	ProductID string `json:"product_id"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type cartResponse struct {
	UserID string             `json:"user_id"`
	Items  []cartItemResponse `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SyncAdd applies a positive quantity delta to the remote line, carrying the
// locally snapshotted unit price for lines the server has not seen yet.
func (c *Client) SyncAdd(ctx context.Context, userID, productID string, qty int, unitPrice decimal.Decimal) error {
	_, err := c.post(ctx, "/cart/add", deltaRequest{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: unitPrice.String(),
	})
	return err
}

// SyncReduce applies a negative quantity delta; the server removes the line
// when it reaches zero.
func (c *Client) SyncReduce(ctx context.Context, userID, productID string, qty int) error {
	_, err := c.post(ctx, "/cart/reduce", deltaRequest{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	})
	return err
}

func (c *Client) SyncRemove(ctx context.Context, userID, productID string) error {
	_, err := c.post(ctx, "/cart/remove", deltaRequest{
		UserID:    userID,
		ProductID: productID,
	})
	return err
}

func (c *Client) SyncClear(ctx context.Context, userID string) error {
	_, err := c.post(ctx, "/cart/clear", clearRequest{UserID: userID})
	return err
}

// FetchCart returns the authoritative remote cart for userID.
func (c *Client) FetchCart(ctx context.Context, userID string) (*cart.Cart, error) {
	body, err := c.do(ctx, http.MethodGet, "/cart/"+userID, nil)
	if err != nil {
		return nil, err
	}

	var resp cartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode remote cart: %w", err)
	}
	return resp.toCart()
}

func (r cartResponse) toCart() (*cart.Cart, error) {
	out := cart.New(r.UserID)
	for _, it := range r.Items {
		p, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("remote price for %q: %w", it.ProductID, err)
		}
		if err := out.AddItem(it.ProductID, p, it.Quantity); err != nil {
			return nil, fmt.Errorf("remote item %q: %w", it.ProductID, err)
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody any) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload)
}

// do performs one HTTP exchange with a single automatic retry for transient
// failures (transport errors and 5xx). 2xx returns the body, 4xx returns a
// typed error straight away.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	body, err := c.doOnce(ctx, method, path, payload)
	if err != nil && isTransient(err) {
		body, err = c.doOnce(ctx, method, path, payload)
	}
	return body, err
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.attachSessionCookies(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transientError{err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ClientError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	default:
		return nil, &transientError{fmt.Errorf("server error: status %d", resp.StatusCode)}
	}
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return "request failed"
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
