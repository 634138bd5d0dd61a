package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

// capture records the last request a test server saw.
type capture struct {
	path  string
	auth  string
	body  map[string]interface{}
	calls int
}

func newServer(t *testing.T, cap *capture, status int, response string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.calls++
		cap.path = r.URL.Path
		cap.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&cap.body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
}

func TestCreateOrder(t *testing.T) {
	var cap capture
	srv := newServer(t, &cap, http.StatusOK,
		`{"success":true,"data":{"approval_url":"https://paypal.test/approve","order_id":"ord-1"}}`)
	defer srv.Close()

	c := New(srv.URL, staticToken("tok-1"))

	created, err := c.CreateOrder(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("creating order: %v", err)
	}

	want := CreatedOrder{ApprovalURL: "https://paypal.test/approve", OrderID: "ord-1"}
	if diff := cmp.Diff(want, created); diff != "" {
		t.Fatalf("unexpected created order (-want +got):\n%s", diff)
	}

	if cap.path != "/payments/paypal/create-order" {
		t.Fatalf("unexpected path %q", cap.path)
	}
	if cap.auth != "Bearer tok-1" {
		t.Fatalf("unexpected authorization header %q", cap.auth)
	}
	ids, ok := cap.body["course_ids"].([]interface{})
	if !ok || len(ids) != 2 {
		t.Fatalf("unexpected course_ids in body: %v", cap.body)
	}
}

func TestErrorCarriesServerMessage(t *testing.T) {
	var cap capture
	srv := newServer(t, &cap, http.StatusUnprocessableEntity,
		`{"success":false,"message":"validation failed"}`)
	defer srv.Close()

	c := New(srv.URL, nil)

	_, err := c.CreateOrder(context.Background(), []int64{1})
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
	if apiErr.Message != "validation failed" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestFailureEnvelopeWithOKStatus(t *testing.T) {
	var cap capture
	srv := newServer(t, &cap, http.StatusOK, `{"success":false,"message":"nope"}`)
	defer srv.Close()

	c := New(srv.URL, nil)

	if _, err := c.CreateOrder(context.Background(), []int64{1}); err == nil {
		t.Fatal("success:false must be an error regardless of status code")
	}
}

func TestCaptureOrder(t *testing.T) {
	var cap capture
	srv := newServer(t, &cap, http.StatusOK, `{"success":true}`)
	defer srv.Close()

	c := New(srv.URL, staticToken("tok-1"))

	if err := c.CaptureOrder(context.Background(), "ord-1", "PAYPAL123"); err != nil {
		t.Fatalf("capturing order: %v", err)
	}

	if cap.path != "/payments/paypal/capture" {
		t.Fatalf("unexpected path %q", cap.path)
	}
	if cap.body["order_id"] != "ord-1" || cap.body["paypal_order_id"] != "PAYPAL123" {
		t.Fatalf("unexpected body: %v", cap.body)
	}
}

func TestCaptureOrderAlreadyCompleted(t *testing.T) {
	var cap capture
	srv := newServer(t, &cap, http.StatusConflict,
		`{"success":false,"message":"Order already completed"}`)
	defer srv.Close()

	c := New(srv.URL, nil)

	err := c.CaptureOrder(context.Background(), "ord-1", "PAYPAL123")
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	var cap capture
	srv := newServer(t, &cap, http.StatusOK, `{"success":true}`)
	defer srv.Close()

	c := New(srv.URL, nil)

	if err := c.CancelOrder(context.Background(), "ord-1"); err != nil {
		t.Fatalf("cancelling order: %v", err)
	}
	if cap.path != "/payments/paypal/cancel" {
		t.Fatalf("unexpected path %q", cap.path)
	}
	if cap.body["order_id"] != "ord-1" {
		t.Fatalf("unexpected body: %v", cap.body)
	}
}

func TestRefundOrder(t *testing.T) {
	var cap capture
	srv := newServer(t, &cap, http.StatusOK, `{"success":true}`)
	defer srv.Close()

	c := New(srv.URL, nil)

	amount := decimal.RequireFromString("19.99")
	if err := c.RefundOrder(context.Background(), "ord-1", "CAP1", amount, "duplicate"); err != nil {
		t.Fatalf("refunding order: %v", err)
	}
	if cap.path != "/payments/paypal/refund" {
		t.Fatalf("unexpected path %q", cap.path)
	}
	if cap.body["capture_id"] != "CAP1" || cap.body["reason"] != "duplicate" {
		t.Fatalf("unexpected body: %v", cap.body)
	}
}

func TestAnonymousRequestsOmitAuthorization(t *testing.T) {
	var cap capture
	srv := newServer(t, &cap, http.StatusOK, `{"success":true}`)
	defer srv.Close()

	c := New(srv.URL, staticToken(""))

	if err := c.CancelOrder(context.Background(), "ord-1"); err != nil {
		t.Fatalf("cancelling order: %v", err)
	}
	if cap.auth != "" {
		t.Fatalf("expected no authorization header, got %q", cap.auth)
	}
}

func TestMessage(t *testing.T) {
	apiErr := &Error{StatusCode: 400, Message: "bad request"}
	if got := Message(apiErr, "fallback"); got != "bad request" {
		t.Fatalf("expected the server message, got %q", got)
	}
	if got := Message(errors.New("plain"), "fallback"); got != "fallback" {
		t.Fatalf("expected the fallback, got %q", got)
	}
}
