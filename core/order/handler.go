package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/config"
	"github.com/khalidmaz/e-learning-market/core/cart"
	"github.com/khalidmaz/e-learning-market/core/claims"
	"github.com/khalidmaz/e-learning-market/core/course"
	"github.com/khalidmaz/e-learning-market/database"
	"github.com/khalidmaz/e-learning-market/random"
	"github.com/khalidmaz/e-learning-market/validate"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

// MsgAlreadyCompleted is the exact message the frontend relies on to treat
// a duplicate capture attempt as success. Do not reword it.
const MsgAlreadyCompleted = "Order already completed"

const currency = "USD"

type createPayload struct {
	CourseIDs []int64 `json:"course_ids" validate:"required,min=1"`
}

type capturePayload struct {
	OrderID       string `json:"order_id" validate:"required"`
	PaypalOrderID string `json:"paypal_order_id" validate:"required"`
}

type cancelPayload struct {
	OrderID string `json:"order_id" validate:"required"`
}

type refundPayload struct {
	OrderID   string          `json:"order_id" validate:"required"`
	CaptureID string          `json:"capture_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason" validate:"required"`
}

type createdData struct {
	ApprovalURL string `json:"approval_url"`
	OrderID     string `json:"order_id"`
}

func fetchCourses(ctx context.Context, db *sqlx.DB, ids []int64) ([]course.Course, error) {
	seen := make(map[int64]bool, len(ids))
	courses := make([]course.Course, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		c, err := course.Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return nil, weberr.NewError(err, fmt.Sprintf("course %d does not exist", id), http.StatusUnprocessableEntity)
			}
			return nil, fmt.Errorf("fetching course[%d]: %w", id, err)
		}

		courses = append(courses, c)
	}

	return courses, nil
}

func total(courses []course.Course) decimal.Decimal {
	var tot decimal.Decimal
	for _, c := range courses {
		tot = tot.Add(c.Price)
	}
	return tot
}

func purchaseUnits(ord Order, courses []course.Course) []paypal.PurchaseUnitRequest {
	items := make([]paypal.Item, 0, len(courses))
	for _, c := range courses {
		items = append(items, paypal.Item{
			Quantity:    "1",
			Name:        c.Name,
			Description: c.Description,

			UnitAmount: &paypal.Money{
				Currency: currency,
				Value:    c.Price.StringFixed(2),
			},
		})
	}

	return []paypal.PurchaseUnitRequest{{
		ReferenceID: ord.ID,
		InvoiceID:   ord.Reference,
		Items:       items,

		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    ord.Total.StringFixed(2),

			Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
				Currency: currency,
				Value:    ord.Total.StringFixed(2),
			}},
		},
	}}
}

// approvalLink digs the buyer-facing redirect target out of the link list
// PayPal returns on order creation.
func approvalLink(links []paypal.Link) (string, error) {
	for _, l := range links {
		if strings.EqualFold(l.Rel, "approve") {
			return l.Href, nil
		}
	}
	return "", errors.New("paypal order has no approval link")
}

// returnURL appends the local order id to the configured redirect target so
// the return pages can rebuild their state from the URL alone.
func returnURL(base, orderID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing redirect url: %w", err)
	}

	q := u.Query()
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func prepare(ctx context.Context, db *sqlx.DB, ord Order, courses []course.Course) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := Create(ctx, tx, ord); err != nil {
			return err
		}

		for _, c := range courses {
			it := Item{
				OrderID:   ord.ID,
				CourseID:  c.ID,
				Price:     c.Price,
				CreatedAt: ord.CreatedAt,
			}

			if err := CreateItem(ctx, tx, it); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("creating the order bound to payment[%s] for user[%s]: %w", ord.ProviderID, ord.UserID, err)
	}
	return nil
}

// fulfill finalizes a paid order: completed status, capture reference,
// course ownership, and a flushed server cart, all in one transaction.
func fulfill(ctx context.Context, db *sqlx.DB, ord Order, captureID string) error {
	items, err := FetchItems(ctx, db, ord.ID)
	if err != nil {
		return err
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		now := time.Now().UTC()

		if err := UpdateStatus(ctx, tx, ord.ID, ord.Status, Completed, now); err != nil {
			return err
		}

		if err := SetCapture(ctx, tx, ord.ID, captureID, now); err != nil {
			return err
		}

		for _, it := range items {
			if err := course.Grant(ctx, tx, ord.UserID, it.CourseID, now); err != nil {
				return err
			}
		}

		if err := cart.Delete(ctx, tx, ord.UserID); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("fulfilling order[%s]: %w", ord.ID, err)
	}
	return nil
}

func HandlePaypalCreate(db *sqlx.DB, pp *paypal.Client, cfg config.Paypal) web.Handler {
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
			Provider:  ProviderPaypal,
			Status:    Created,
			Total:     total(courses),
			CreatedAt: now,
			UpdatedAt: now,
		}

		retURL, err := returnURL(cfg.ReturnURL, ord.ID)
		if err != nil {
			return err
		}
		cancelURL, err := returnURL(cfg.CancelURL, ord.ID)
		if err != nil {
			return err
		}

		app := &paypal.ApplicationContext{
			ReturnURL: retURL,
			CancelURL: cancelURL,
		}

		ppOrd, err := pp.CreateOrder(ctx, "CAPTURE", purchaseUnits(ord, courses), nil, app)
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		approval, err := approvalLink(ppOrd.Links)
		if err != nil {
			return err
		}

		ord.ProviderID = ppOrd.ID
		if err := prepare(ctx, db, ord, courses); err != nil {
			return err
		}

		data := createdData{ApprovalURL: approval, OrderID: ord.ID}
		return web.Respond(ctx, w, web.Success(data), http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in capturePayload
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding capture payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ord, err := Fetch(ctx, db, in.OrderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if ord.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.NotAuthorized(errors.New("order belongs to another user"))
		}

		if ord.Status == Completed {
			err := errors.New("order captured twice")
			return weberr.NewError(err, MsgAlreadyCompleted, http.StatusConflict)
		}

		if !CanTransition(ord.Status, Completed) {
			err := fmt.Errorf("order in status[%s] cannot be captured", ord.Status)
			return weberr.NewError(err, "order can no longer be captured", http.StatusUnprocessableEntity)
		}

		if ord.ProviderID != in.PaypalOrderID {
			err := errors.New("paypal order id does not match the order")
			return weberr.NewError(err, "payment does not match the order", http.StatusUnprocessableEntity)
		}

		resp, err := pp.CaptureOrder(ctx, in.PaypalOrderID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", in.PaypalOrderID, err)
		}

		if resp.Status != "COMPLETED" {
			err := fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", in.PaypalOrderID, resp.Status)
			return weberr.NewError(err, "payment was not completed", http.StatusUnprocessableEntity)
		}

		var captureID string
		if len(resp.PurchaseUnits) > 0 && resp.PurchaseUnits[0].Payments != nil && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
			captureID = resp.PurchaseUnits[0].Payments.Captures[0].ID
		}

		if err := fulfill(ctx, db, ord, captureID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, web.Success(nil), http.StatusOK)
	}
}

func HandlePaypalCancel(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in cancelPayload
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding cancel payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ord, err := Fetch(ctx, db, in.OrderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if ord.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.NotAuthorized(errors.New("order belongs to another user"))
		}

		// Cancelling twice is fine; cancelling a paid order is not.
		if ord.Status == Cancelled {
			return web.Respond(ctx, w, web.Success(nil), http.StatusOK)
		}

		if ord.Status == Completed {
			err := errors.New("completed orders cannot be cancelled")
			return weberr.NewError(err, MsgAlreadyCompleted, http.StatusConflict)
		}

		if err := UpdateStatus(ctx, db, ord.ID, ord.Status, Cancelled, time.Now().UTC()); err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(nil), http.StatusOK)
	}
}

func HandlePaypalRefund(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in refundPayload
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding refund payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ord, err := Fetch(ctx, db, in.OrderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !CanTransition(ord.Status, Refunded) {
			err := fmt.Errorf("order in status[%s] cannot be refunded", ord.Status)
			return weberr.NewError(err, "only completed orders can be refunded", http.StatusUnprocessableEntity)
		}

		if ord.CaptureID != "" && ord.CaptureID != in.CaptureID {
			err := errors.New("capture id does not match the order")
			return weberr.NewError(err, "capture does not match the order", http.StatusUnprocessableEntity)
		}

		amount := in.Amount
		if amount.IsZero() {
			amount = ord.Total
		}

		req := paypal.RefundCaptureRequest{
			Amount: &paypal.Money{
				Currency: currency,
				Value:    amount.StringFixed(2),
			},
			NoteToPayer: in.Reason,
		}

		if _, err := pp.RefundCapture(ctx, in.CaptureID, req); err != nil {
			return fmt.Errorf("refunding capture[%s]: %w", in.CaptureID, err)
		}

		if err := UpdateStatus(ctx, db, ord.ID, ord.Status, Refunded, time.Now().UTC()); err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(nil), http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orders, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(orders), http.StatusOK)
	}
}
