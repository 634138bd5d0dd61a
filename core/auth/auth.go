package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/core/claims"
	"github.com/khalidmaz/e-learning-market/core/user"
	"github.com/khalidmaz/e-learning-market/validate"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionUserID = "user_id"
	sessionRole   = "role"
)

// The frontend keeps the session token in its durable "token" slot and
// replays it on every call as a bearer header, so sessions are loaded from
// the Authorization header rather than a cookie.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// LoadSession attaches the caller's session (or a fresh one) to the context.
func LoadSession(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			ctx, err := session.Load(ctx, bearerToken(r))
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Authenticate rejects callers without a logged-in session and exposes their
// identity as claims.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			userID := session.GetString(ctx, sessionUserID)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			ctx = claims.Set(ctx, claims.Claims{
				UserID: userID,
				Role:   session.GetString(ctx, sessionRole),
			})

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Maybe exposes the caller's identity as claims when a session exists,
// without requiring one. Handlers behind it serve anonymous callers too.
func Maybe(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if userID := session.GetString(ctx, sessionUserID); userID != "" {
				ctx = claims.Set(ctx, claims.Claims{
					UserID: userID,
					Role:   session.GetString(ctx, sessionRole),
				})
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Admin(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			userID := session.GetString(ctx, sessionUserID)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			role := session.GetString(ctx, sessionRole)
			if role != claims.RoleAdmin {
				return weberr.NotAuthorized(errors.New("user is not an admin"))
			}

			ctx = claims.Set(ctx, claims.Claims{UserID: userID, Role: role})

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionData struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      user.User `json:"user"`
}

// startSession writes the user into the session and returns the committed
// token for the client to store.
func startSession(ctx context.Context, session *scs.SessionManager, usr user.User) (sessionData, error) {
	if err := session.RenewToken(ctx); err != nil {
		return sessionData{}, fmt.Errorf("renewing session token: %w", err)
	}

	session.Put(ctx, sessionUserID, usr.ID)
	session.Put(ctx, sessionRole, usr.Role)

	token, expiry, err := session.Commit(ctx)
	if err != nil {
		return sessionData{}, fmt.Errorf("committing session: %w", err)
	}

	return sessionData{Token: token, ExpiresAt: expiry, User: usr}, nil
}

func HandleSignup(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var un user.UserNew
		if err := web.Decode(w, r, &un); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding signup payload: %w", err))
		}

		if err := validate.Check(un); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(un.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		now := time.Now().UTC()
		usr := user.User{
			ID:           validate.GenerateID(),
			Name:         un.Name,
			Email:        strings.ToLower(un.Email),
			Role:         claims.RoleStudent,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := user.Create(ctx, db, usr); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return weberr.NewError(err, "email already registered", http.StatusConflict)
			}
			return fmt.Errorf("creating user: %w", err)
		}

		data, err := startSession(ctx, session, usr)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(data), http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var lp loginPayload
		if err := web.Decode(w, r, &lp); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding login payload: %w", err))
		}

		if err := validate.Check(lp); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		usr, err := user.FetchByEmail(ctx, db, strings.ToLower(lp.Email))
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return weberr.NewError(err, "invalid email or password", http.StatusUnauthorized)
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(lp.Password)); err != nil {
			return weberr.NewError(err, "invalid email or password", http.StatusUnauthorized)
		}

		data, err := startSession(ctx, session, usr)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(data), http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
