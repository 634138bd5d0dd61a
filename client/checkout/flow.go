// Package checkout drives the redirect lifecycle of a hosted payment page.
//
// Payment approval happens on a page this program does not control, so no
// in-memory state survives between initiating a checkout and the buyer
// coming back: the only thing that crosses the redirect is what the
// payment provider encodes into the return URL. HandleSuccessReturn and
// HandleCancelReturn are therefore standalone entry points that rebuild
// everything they need from the query parameters, not continuations of
// Initiate.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/khalidmaz/e-learning-market/client/cart"
	"github.com/khalidmaz/e-learning-market/client/rest"
	"github.com/sirupsen/logrus"
)

type State string

const (
	StateIdle           State = "idle"
	StateSubmitting     State = "submitting"
	StateAwaitingReturn State = "awaiting_return"
	StateCapturing      State = "capturing"
	StateCompleted      State = "completed"
	StateCancelling     State = "cancelling"
	StateCancelled      State = "cancelled"
	StateFailed         State = "failed"
)

// MsgInvalidPayment is shown when a success return lacks the identifiers
// needed to capture.
const MsgInvalidPayment = "Invalid payment information"

const (
	msgCompleted        = "Payment completed successfully!"
	msgAlreadyProcessed = "Payment already processed!"
	msgCancelled        = "Payment cancelled"
	captureFallback     = "Failed to process payment"
)

// defaultRedirectDelay is how long the completed screen lingers before
// moving on to the profile page.
const defaultRedirectDelay = 8 * time.Second

const defaultProfileURL = "/profile"

// PaymentsAPI is the slice of the REST client the flow needs.
type PaymentsAPI interface {
	CreateOrder(ctx context.Context, courseIDs []int64) (rest.CreatedOrder, error)
	CaptureOrder(ctx context.Context, orderID, paypalOrderID string) error
	CancelOrder(ctx context.Context, orderID string) error
}

// Navigator sends the user agent somewhere else, the moral equivalent of
// assigning window.location.
type Navigator func(url string)

type Config struct {
	API      PaymentsAPI
	Cart     *cart.Store
	Navigate Navigator
	Log      logrus.FieldLogger

	// RedirectDelay overrides how long to wait before leaving the
	// completed screen; zero means the default.
	RedirectDelay time.Duration

	// ProfileURL overrides where the delayed navigation lands.
	ProfileURL string
}

type Flow struct {
	api      PaymentsAPI
	cart     *cart.Store
	navigate Navigator
	log      logrus.FieldLogger

	redirectDelay time.Duration
	profileURL    string

	// after is swappable in tests; it defaults to time.AfterFunc.
	after func(d time.Duration, fn func())

	mu      sync.Mutex
	state   State
	message string
}

func New(cfg Config) *Flow {
	f := &Flow{
		api:           cfg.API,
		cart:          cfg.Cart,
		navigate:      cfg.Navigate,
		log:           cfg.Log,
		redirectDelay: cfg.RedirectDelay,
		profileURL:    cfg.ProfileURL,
		after:         func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		state:         StateIdle,
	}

	if f.navigate == nil {
		f.navigate = func(string) {}
	}
	if f.redirectDelay == 0 {
		f.redirectDelay = defaultRedirectDelay
	}
	if f.profileURL == "" {
		f.profileURL = defaultProfileURL
	}

	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Message is the user-facing text for the current state.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

func (f *Flow) set(state State, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	f.message = message
}

// Initiate creates the remote order from the cart contents and hands the
// browser over to the approval page. A failed attempt returns the flow to
// idle; retrying is up to the user.
func (f *Flow) Initiate(ctx context.Context) error {
	ids := f.cart.CourseIDs()
	if len(ids) == 0 {
		return errors.New("no items to checkout")
	}

	f.set(StateSubmitting, "")

	created, err := f.api.CreateOrder(ctx, ids)
	if err != nil {
		f.set(StateIdle, "")
		return fmt.Errorf("creating order: %w", err)
	}

	f.set(StateAwaitingReturn, "")
	f.navigate(created.ApprovalURL)

	return nil
}

// HandleSuccessReturn finishes a checkout the payment page approved. The
// query is the return URL's: order_id is ours, token is the provider's
// order reference.
func (f *Flow) HandleSuccessReturn(ctx context.Context, query url.Values) error {
	orderID := query.Get("order_id")
	token := query.Get("token")

	if orderID == "" || token == "" {
		f.set(StateFailed, MsgInvalidPayment)
		return errors.New("return url is missing payment identifiers")
	}

	f.set(StateCapturing, "")

	err := f.api.CaptureOrder(ctx, orderID, token)
	switch {
	case err == nil:
		f.complete(msgCompleted)
	case errors.Is(err, rest.ErrAlreadyCompleted):
		// A refreshed success page captures twice; the order is paid
		// either way.
		f.complete(msgAlreadyProcessed)
	default:
		f.set(StateFailed, rest.Message(err, captureFallback))
		return fmt.Errorf("capturing order[%s]: %w", orderID, err)
	}

	return nil
}

func (f *Flow) complete(message string) {
	f.set(StateCompleted, message)
	f.cart.Clear()
	f.after(f.redirectDelay, func() { f.navigate(f.profileURL) })
}

// HandleCancelReturn settles a checkout the buyer backed out of. The
// server-side cancel is best effort: whatever it says, the user-visible
// outcome is cancelled, and the cart is kept so they can try again.
func (f *Flow) HandleCancelReturn(ctx context.Context, query url.Values) {
	f.set(StateCancelling, "")

	if orderID := query.Get("order_id"); orderID != "" {
		if err := f.api.CancelOrder(ctx, orderID); err != nil {
			f.log.Warnf("cancelling order[%s]: %v", orderID, err)
		}
	}

	f.set(StateCancelled, msgCancelled)
}
