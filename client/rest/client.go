// Package rest is the Go counterpart of the web frontend's HTTP layer: a
// thin JSON client for the marketplace API that unwraps the
// {success, data, message} envelope and replays the stored session token
// as a bearer header.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/khalidmaz/e-learning-market/client/localstore"
	"github.com/shopspring/decimal"
)

// ErrAlreadyCompleted reports a capture attempt on an order the server has
// already completed. Callers treat it as success.
var ErrAlreadyCompleted = errors.New("order already completed")

// msgAlreadyCompleted is the server message that signals a duplicate
// capture.
const msgAlreadyCompleted = "Order already completed"

const defaultTimeout = 30 * time.Second

// Error is a failure reported by the API, carrying the server's own
// message so it can be shown to the user verbatim.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Message digs the server-provided message out of err, or returns the
// fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// TokenSource supplies the session token attached to every request. An
// empty token means anonymous.
type TokenSource interface {
	Token() string
}

// StoredToken reads the token from the durable key-value store, where the
// login flow left it.
type StoredToken struct {
	KV *localstore.Store
}

func (t *StoredToken) Token() string {
	var token string
	if _, err := t.KV.Get(localstore.KeyToken, &token); err != nil {
		return ""
	}
	return token
}

type Client struct {
	base   string
	tokens TokenSource
	http   *http.Client
}

func New(base string, tokens TokenSource) *Client {
	return &Client{
		base:   base,
		tokens: tokens,
		http:   &http.Client{Timeout: defaultTimeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response of %s: %w", path, err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		return &Error{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding data of %s: %w", path, err)
		}
	}

	return nil
}

// CreatedOrder is what a create-order call hands back: where to send the
// buyer and which local order to reconcile later.
type CreatedOrder struct {
	ApprovalURL string `json:"approval_url"`
	OrderID     string `json:"order_id"`
}

func (c *Client) CreateOrder(ctx context.Context, courseIDs []int64) (CreatedOrder, error) {
	body := struct {
		CourseIDs []int64 `json:"course_ids"`
	}{CourseIDs: courseIDs}

	var out CreatedOrder
	if err := c.post(ctx, "/payments/paypal/create-order", body, &out); err != nil {
		return CreatedOrder{}, err
	}

	return out, nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID, paypalOrderID string) error {
	body := struct {
		OrderID       string `json:"order_id"`
		PaypalOrderID string `json:"paypal_order_id"`
	}{OrderID: orderID, PaypalOrderID: paypalOrderID}

	err := c.post(ctx, "/payments/paypal/capture", body, nil)

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message == msgAlreadyCompleted {
		return ErrAlreadyCompleted
	}

	return err
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body := struct {
		OrderID string `json:"order_id"`
	}{OrderID: orderID}

	return c.post(ctx, "/payments/paypal/cancel", body, nil)
}

func (c *Client) RefundOrder(ctx context.Context, orderID, captureID string, amount decimal.Decimal, reason string) error {
	body := struct {
		OrderID   string          `json:"order_id"`
		CaptureID string          `json:"capture_id"`
		Amount    decimal.Decimal `json:"amount"`
		Reason    string          `json:"reason"`
	}{OrderID: orderID, CaptureID: captureID, Amount: amount, Reason: reason}

	return c.post(ctx, "/payments/paypal/refund", body, nil)
}

// Session is the login result; Token belongs in the store's token slot so
// later requests pick it up.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      json.RawMessage `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var out Session
	if err := c.post(ctx, "/auth/login", body, &out); err != nil {
		return Session{}, err
	}

	return out, nil
}
