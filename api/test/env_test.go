package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api"
	"github.com/khalidmaz/e-learning-market/config"
	"github.com/khalidmaz/e-learning-market/core/claims"
	"github.com/khalidmaz/e-learning-market/core/course"
	"github.com/khalidmaz/e-learning-market/core/user"
	"github.com/khalidmaz/e-learning-market/database"
	"github.com/khalidmaz/e-learning-market/validate"
	"github.com/ory/dockertest/v3"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"golang.org/x/crypto/bcrypt"
)

// dbHost points at the throwaway postgres container TestMain starts for
// the whole package.
var dbHost string

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("connecting to docker: %v", err)
	}

	res, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
	})
	if err != nil {
		log.Fatalf("starting postgres container: %v", err)
	}
	res.Expire(600)

	dbHost = "localhost:" + res.GetPort("5432/tcp")

	if err := pool.Retry(func() error {
		db, err := database.Open(dbConfig("postgres"))
		if err != nil {
			return err
		}
		return db.Close()
	}); err != nil {
		log.Fatalf("waiting for postgres: %v", err)
	}

	code := m.Run()

	if err := pool.Purge(res); err != nil {
		log.Fatalf("purging postgres container: %v", err)
	}

	os.Exit(code)
}

func dbConfig(name string) config.DB {
	return config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       dbHost,
		Name:       name,
		DisableTLS: true,
	}
}

// TestEnv is a full API instance on a dedicated database, with the
// payment providers replaced by local mocks.
type TestEnv struct {
	URL    string
	Server *httptest.Server
	DB     *sqlx.DB

	Paypal        *mockPaypal
	Stripe        *mockStripe
	WebhookSecret string

	UserEmail  string
	UserPass   string
	UserID     string
	AdminEmail string
	AdminPass  string

	token string
}

func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	admin, err := database.Open(dbConfig("postgres"))
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	defer admin.Close()

	if _, err := admin.Exec("CREATE DATABASE " + name); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", name, err)
	}

	db, err := database.Open(dbConfig(name))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", name, err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating %s: %w", name, err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	session := scs.New()
	session.Lifetime = time.Hour

	env := &TestEnv{
		DB:            db,
		Paypal:        &mockPaypal{},
		Stripe:        &mockStripe{},
		WebhookSecret: "whsec_" + name,
		UserEmail:     "buyer@example.com",
		UserPass:      "buyer-pass-123",
		AdminEmail:    "admin@example.com",
		AdminPass:     "admin-pass-123",
	}

	paypalSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(paypalSrv.Close)

	pp, err := paypal.NewClient("test-client", "test-secret", paypalSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}

	stripeSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stripeSrv.Close)

	strp := &stripecl.API{}
	strp.Init("sk_test", &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(stripeSrv.URL),
		}),
	})

	paypalCfg := config.Paypal{
		ReturnURL: "http://localhost:3000/payment/success",
		CancelURL: "http://localhost:3000/payment/cancel",
	}
	stripeCfg := config.Stripe{
		WebhookSecret: env.WebhookSecret,
		SuccessURL:    "http://localhost:3000/payment/success",
		CancelURL:     "http://localhost:3000/payment/cancel",
	}

	mux := api.APIMux(api.APIConfig{
		Log:       logger,
		DB:        db,
		Session:   session,
		Paypal:    pp,
		PaypalCfg: paypalCfg,
		Stripe:    strp,
		StripeCfg: stripeCfg,
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Server.Close)
	env.URL = env.Server.URL

	env.UserID, err = createUser(db, "Buyer", env.UserEmail, env.UserPass, claims.RoleStudent)
	if err != nil {
		return nil, err
	}
	if _, err := createUser(db, "Admin", env.AdminEmail, env.AdminPass, claims.RoleAdmin); err != nil {
		return nil, err
	}

	return env, nil
}

func createUser(db *sqlx.DB, name, email, pass, role string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           validate.GenerateID(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := user.Create(context.Background(), db, usr); err != nil {
		return "", fmt.Errorf("creating user %s: %w", email, err)
	}

	return usr.ID, nil
}

func (e *TestEnv) createCourse(t *testing.T, name, price string) course.Course {
	t.Helper()

	now := time.Now().UTC()
	c := course.Course{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		CreatedAt: now,
		UpdatedAt: now,
	}

	const q = `
	INSERT INTO courses (name, price, created_at, updated_at)
	VALUES ($1, $2, $3, $4)
	RETURNING course_id`

	if err := e.DB.QueryRow(q, c.Name, c.Price, c.CreatedAt, c.UpdatedAt).Scan(&c.ID); err != nil {
		t.Fatalf("creating course %s: %v", name, err)
	}

	return c
}

type tokenTransport struct {
	env *TestEnv
}

func (tt *tokenTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if tt.env.token != "" {
		r.Header.Set("Authorization", "Bearer "+tt.env.token)
	}
	return http.DefaultTransport.RoundTrip(r)
}

// Client attaches the session token of the last Login to every request.
func (e *TestEnv) Client() *http.Client {
	return &http.Client{Transport: &tokenTransport{env: e}}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// do runs a JSON request against the API, checks the status code and
// returns the decoded envelope.
func (e *TestEnv) do(t *testing.T, method, path string, body interface{}, status int) envelope {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	r, err := http.NewRequest(method, e.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := e.Client().Do(r)
	if err != nil {
		t.Fatalf("calling %s %s: %v", method, path, err)
	}
	defer w.Body.Close()

	raw, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatalf("reading response of %s: %v", path, err)
	}

	if w.StatusCode != status {
		t.Fatalf("%s %s: status code %s, body %s", method, path, w.Status, raw)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decoding response of %s: %v", path, err)
		}
	}

	return env
}

func Login(e *TestEnv, email, pass string) error {
	body := map[string]string{"email": email, "password": pass}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	w, err := http.Post(e.URL+"/auth/login", "application/json", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("calling login: %w", err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: status code %s", w.Status)
	}

	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("decoding login data: %w", err)
	}
	if data.Token == "" {
		return fmt.Errorf("login returned no token")
	}

	e.token = data.Token
	return nil
}

func Logout(e *TestEnv) {
	r, _ := http.NewRequest(http.MethodPost, e.URL+"/auth/logout", nil)
	w, err := e.Client().Do(r)
	if err == nil {
		w.Body.Close()
	}
	e.token = ""
}
