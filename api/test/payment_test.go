package test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/core/course"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

func cartTotal(courses []course.Course) decimal.Decimal {
	var tot decimal.Decimal
	for _, c := range courses {
		tot = tot.Add(c.Price)
	}
	return tot
}

// mockPaypal stands in for the PayPal REST API. Create validates the
// purchase units against expectedCart; capture reports COMPLETED with a
// fixed capture id.
type mockPaypal struct {
	expectedCart []course.Course

	createCalls  int
	captureCalls int
	refundCalls  int
	lastOrderID  string
	lastRefunded string
}

const mockCaptureID = "CAP-MOCK-1"

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := map[string]interface{}{
			"access_token": "mock-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		web.Respond(context.Background(), w, data, 200)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.createCalls++

		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units[0].Items) != len(m.expectedCart) {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if pu.Units[0].Amount.Value != cartTotal(m.expectedCart).StringFixed(2) {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		m.lastOrderID = fmt.Sprintf("PAYPAL-%d", rand.Intn(300))
		ord := paypal.Order{
			ID:     m.lastOrderID,
			Status: "CREATED",
			Links: []paypal.Link{
				{Rel: "self", Href: "https://api.paypal.test/v2/checkout/orders/" + m.lastOrderID},
				{Rel: "approve", Href: "https://paypal.test/checkoutnow?token=" + m.lastOrderID},
			},
		}
		web.Respond(context.Background(), w, ord, 200)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.captureCalls++

		id := mux.Vars(r)["id"]
		resp := map[string]interface{}{
			"id":     id,
			"status": "COMPLETED",
			"purchase_units": []map[string]interface{}{{
				"payments": map[string]interface{}{
					"captures": []map[string]interface{}{{
						"id":     mockCaptureID,
						"status": "COMPLETED",
					}},
				},
			}},
		}
		web.Respond(context.Background(), w, resp, 201)
	})

	refund := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.refundCalls++
		m.lastRefunded = mux.Vars(r)["id"]

		resp := map[string]interface{}{
			"id":     "REFUND-1",
			"status": "COMPLETED",
		}
		web.Respond(context.Background(), w, resp, 201)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	r.Handle("/v2/payments/captures/{id}/refund", refund).Methods("POST")
	return r
}

// mockStripe stands in for the Stripe checkout API. Session creation
// validates the form-encoded line items against expectedCart.
type mockStripe struct {
	expectedCart []course.Course

	createCalls   int
	lastSessionID string
}

func (m *mockStripe) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.createCalls++

		if err := r.ParseForm(); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		n := 0
		tot := decimal.Zero
		for key, vals := range r.PostForm {
			if !strings.HasSuffix(key, "[price_data][unit_amount]") {
				continue
			}

			amount, err := strconv.ParseInt(vals[0], 10, 64)
			if err != nil {
				web.Respond(context.Background(), w, nil, 400)
				return
			}

			tot = tot.Add(decimal.New(amount, -2))
			n++
		}

		if n != len(m.expectedCart) || !tot.Equal(cartTotal(m.expectedCart)) {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		m.lastSessionID = fmt.Sprintf("cs_test_%d", rand.Intn(300))
		session := map[string]interface{}{
			"id":   m.lastSessionID,
			"url":  "https://checkout.stripe.test/pay/" + m.lastSessionID,
			"mode": "payment",
		}
		web.Respond(context.Background(), w, session, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	return r
}
