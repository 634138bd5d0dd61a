package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/config"
	"github.com/khalidmaz/e-learning-market/core/claims"
	"github.com/khalidmaz/e-learning-market/core/course"
	"github.com/khalidmaz/e-learning-market/random"
	"github.com/khalidmaz/e-learning-market/validate"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// Stripe wants unit amounts in cents.
var cents = decimal.NewFromInt(100)

func stripeLineItems(courses []course.Course) []*stripe.CheckoutSessionLineItemParams {
	li := make([]*stripe.CheckoutSessionLineItemParams, 0, len(courses))
	for _, c := range courses {
		li = append(li, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String("usd"),
				TaxBehavior: stripe.String("inclusive"),
				UnitAmount:  stripe.Int64(c.Price.Mul(cents).IntPart()),

				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(c.Name),
					Description: stripe.String(c.Description),
				},
			},
		})
	}
	return li
}

// HandleStripeCreate is the card-payment twin of the PayPal create handler:
// same local order lifecycle, with the hosted checkout session standing in
// for the approval page.
func HandleStripeCreate(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in createPayload
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding create-order payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, "no items to checkout", http.StatusUnprocessableEntity)
		}

		courses, err := fetchCourses(ctx, db, in.CourseIDs)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ord := Order{
			ID:        validate.GenerateID(),
			Reference: random.Reference(10),
			UserID:    clm.UserID,
			Provider:  ProviderStripe,
			Status:    Created,
			Total:     total(courses),
			CreatedAt: now,
			UpdatedAt: now,
		}

		successURL, err := returnURL(cfg.SuccessURL, ord.ID)
		if err != nil {
			return err
		}
		cancelURL, err := returnURL(cfg.CancelURL, ord.ID)
		if err != nil {
			return err
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(successURL),
			CancelURL:  stripe.String(cancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems:  stripeLineItems(courses),
		}

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		ord.ProviderID = s.ID
		if err := prepare(ctx, db, ord, courses); err != nil {
			return err
		}

		data := createdData{ApprovalURL: s.URL, OrderID: ord.ID}
		return web.Respond(ctx, w, web.Success(data), http.StatusOK)
	}
}

// HandleStripeWebhook fulfills stripe orders. Unlike PayPal there is no
// capture call from the frontend; Stripe confirms the payment itself.
func HandleStripeWebhook(db *sqlx.DB, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		ord, err := FetchByProviderID(ctx, db, session.ID)
		if err != nil {
			return err
		}

		if ord.Status == Completed {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var captureID string
		if session.PaymentIntent != nil {
			captureID = session.PaymentIntent.ID
		}

		if err := fulfill(ctx, db, ord, captureID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
