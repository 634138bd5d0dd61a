package config

import "time"

type Config struct {
	Web     Web
	DB      DB
	Cors    Cors
	Session Session
	Rate    Rate
	Paypal  Paypal
	Stripe  Stripe
	Oauth   Oauth
	Order   Order
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:market"`
	DisableTLS bool   `conf:"default:true"`
}

type Cors struct {
	Origin string `conf:"default:"`
}

type Session struct {
	Lifetime time.Duration `conf:"default:24h"`
}

type Rate struct {
	RPS    float64 `conf:"default:20"`
	Burst  int     `conf:"default:40"`
	Expiry int     `conf:"default:10"`
}

type Paypal struct {
	ClientID string `conf:"default:test"`
	Secret   string `conf:"default:test,mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`

	// Where the payment page sends the buyer back. The order id is appended
	// as a query parameter so the return pages can rebuild their state from
	// the URL alone.
	ReturnURL string `conf:"default:http://localhost:3000/payment/success"`
	CancelURL string `conf:"default:http://localhost:3000/payment/cancel"`
}

type Stripe struct {
	APISecret     string `conf:"default:test,mask"`
	WebhookSecret string `conf:"default:test,mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/payment/success"`
	CancelURL     string `conf:"default:http://localhost:3000/payment/cancel"`
}

type OauthProvider struct {
	Client      string `conf:"default:test"`
	Secret      string `conf:"default:test,mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/auth/oauth-callback/google"`
}

type Oauth struct {
	Google           OauthProvider
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000"`
}

type Order struct {
	// How long a created order may sit unpaid before the background
	// sweeper marks it expired.
	PendingTimeout time.Duration `conf:"default:1h"`
}
